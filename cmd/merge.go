package cmd

import (
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/dataset"
)

var (
	mergeMode  string
	mergeBase  string
	mergeForce bool
	mergeWatch bool
)

type mergeSummary struct {
	Path      string         `yaml:"path"`
	Rebuilt   bool           `yaml:"rebuilt"`
	RunID     string         `yaml:"run_id,omitempty"`
	Mode      string         `yaml:"mode"`
	Base      string         `yaml:"base"`
	Rows      int            `yaml:"rows"`
	FanOut    int            `yaml:"fan_out"`
	Added     int            `yaml:"outer_added"`
	Sources   map[string]int `yaml:"source_rows,omitempty"`
	Unmatched map[string]int `yaml:"unmatched,omitempty"`
	Skipped   []string       `yaml:"skipped,omitempty"`
}

func (s mergeSummary) markdown() string {
	var b strings.Builder
	b.WriteString("# Merged dataset\n\n")
	if s.Rebuilt {
		b.WriteString(fmt.Sprintf("Built %s (run %s)\n\n", s.Path, s.RunID))
	} else {
		b.WriteString(fmt.Sprintf("Reused %s; sources unchanged\n\n", s.Path))
	}
	b.WriteString(fmt.Sprintf("- Mode: %s\n- Base: %s\n- Rows: %d\n", s.Mode, s.Base, s.Rows))
	if s.Rebuilt {
		b.WriteString(fmt.Sprintf("- Fan-out rows: %d\n- Outer rows added: %d\n", s.FanOut, s.Added))
		tags := make([]string, 0, len(s.Sources))
		for tag := range s.Sources {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			b.WriteString(fmt.Sprintf("- %s: %d source rows, %d without a base match\n", tag, s.Sources[tag], s.Unmatched[tag]))
		}
	}
	if len(s.Skipped) > 0 {
		b.WriteString(fmt.Sprintf("- Skipped (no source file): %s\n", strings.Join(s.Skipped, ", ")))
	}
	return b.String()
}

func buildSummary(st *dataset.Stage, res *dataset.BuildResult) mergeSummary {
	return mergeSummary{
		Path:      st.MergedPath,
		Rebuilt:   true,
		RunID:     res.Manifest.RunID,
		Mode:      string(res.Manifest.Mode),
		Base:      res.Manifest.Base,
		Rows:      res.Stats.Rows,
		FanOut:    res.Stats.FanOut,
		Added:     res.Stats.OuterAdded,
		Sources:   res.Stats.SourceRows,
		Unmatched: res.Stats.Unmatched,
		Skipped:   res.Skipped,
	}
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the per-pollutant source files into one table",
	Long: `Merge joins every configured pollutant file onto the base pollutant on (Date, Site ID)
and writes the merged CSV plus a manifest. Without --force the previous artifact is
reused when its manifest still matches the sources.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("mode") {
			cfg.MergeMode = mergeMode
		}
		if cmd.Flags().Changed("base") {
			cfg.BasePollutant = mergeBase
		}
		st, err := newStage()
		if err != nil {
			return err
		}

		var summary mergeSummary
		err = observe("merge", func() error {
			if !mergeForce {
				t, rebuilt, err := st.Ensure(cmd.Context())
				if err != nil {
					return err
				}
				if !rebuilt {
					base, _ := st.BasePollutant()
					summary = mergeSummary{Path: st.MergedPath, Mode: string(st.Mode), Base: base.Tag, Rows: t.Len()}
					return nil
				}
				m, err := dataset.LoadManifest(st.ManifestFile())
				if err != nil {
					return err
				}
				summary = mergeSummary{Path: st.MergedPath, Rebuilt: true, RunID: m.RunID, Mode: string(m.Mode), Base: m.Base, Rows: t.Len()}
				return nil
			}
			res, err := st.Build(cmd.Context())
			if err != nil {
				return err
			}
			summary = buildSummary(st, res)
			return nil
		})
		if err != nil {
			return err
		}
		if err := emit(cmd, view{data: summary, markdown: summary.markdown()}); err != nil {
			return err
		}
		if !mergeWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(cmd.ErrOrStderr(), "Watching sources; press Ctrl+C to stop")
		return st.Watch(ctx, dataset.DefaultDebounce, func(res *dataset.BuildResult, err error) {
			if err != nil {
				printError(cmd.ErrOrStderr(), err)
				return
			}
			s := buildSummary(st, res)
			_ = emit(cmd, view{data: s, markdown: s.markdown()})
		})
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeMode, "mode", "left", "join mode: left (base rows only) | outer (append unmatched source rows)")
	mergeCmd.Flags().StringVar(&mergeBase, "base", "", "base pollutant tag (overrides config)")
	mergeCmd.Flags().BoolVar(&mergeForce, "force", false, "always rebuild, even when the sources are unchanged")
	mergeCmd.Flags().BoolVar(&mergeWatch, "watch", false, "keep running and rebuild whenever a source file changes")
}
