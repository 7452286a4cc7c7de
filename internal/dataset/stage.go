package dataset

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/logger"
	"github.com/KaramelBytes/airstat-cli/internal/observability"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// Stage owns the merged artifact: it builds it from the source files, loads
// a previous build, or reuses one whose sources are unchanged.
type Stage struct {
	Catalog      airquality.Catalog
	DataDir      string // source files are Pollutant.File relative to this
	Base         string // base pollutant tag; empty means the first catalog entry
	Mode         Mode
	MergedPath   string
	ManifestPath string // defaults to MergedPath + ".manifest.json"

	Clock   clockwork.Clock
	Metrics *observability.Metrics
	Log     *zap.SugaredLogger
}

// BuildResult describes a completed merge.
type BuildResult struct {
	Table    *table.Table
	Manifest *Manifest
	Stats    MergeStats
	Skipped  []string // pollutants whose source file does not exist
}

func (s *Stage) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}

func (s *Stage) log() *zap.SugaredLogger {
	if s.Log == nil {
		return logger.Logger
	}
	return s.Log
}

// ManifestFile is where the manifest of the merged artifact lives.
func (s *Stage) ManifestFile() string { return s.manifestPath() }

func (s *Stage) manifestPath() string {
	if s.ManifestPath != "" {
		return s.ManifestPath
	}
	return s.MergedPath + ".manifest.json"
}

func (s *Stage) mode() Mode {
	if s.Mode == "" {
		return ModeLeft
	}
	return s.Mode
}

// basePollutant resolves Base against the catalog.
func (s *Stage) basePollutant() (airquality.Pollutant, error) {
	if s.Catalog.Len() == 0 {
		return airquality.Pollutant{}, errors.InvalidInputf("empty pollutant catalog")
	}
	if s.Base == "" {
		return s.Catalog.Pollutants()[0], nil
	}
	p, ok := s.Catalog.Lookup(s.Base)
	if !ok {
		return airquality.Pollutant{}, errors.WithHintf(
			errors.InvalidInputf("base pollutant %q is not in the catalog", s.Base),
			"choose one of %v", s.Catalog.Tags())
	}
	return p, nil
}

// BasePollutant is the pollutant whose rows define the merged table.
func (s *Stage) BasePollutant() (airquality.Pollutant, error) { return s.basePollutant() }

// SourcePath is where the source file of p is expected.
func (s *Stage) SourcePath(p airquality.Pollutant) string {
	if filepath.IsAbs(p.File) {
		return p.File
	}
	return filepath.Join(s.DataDir, p.File)
}

// plan lists the base pollutant first, then the others in catalog order,
// keeping only those whose file exists. The base file must exist.
func (s *Stage) plan() (airquality.Pollutant, []airquality.Pollutant, []string, error) {
	base, err := s.basePollutant()
	if err != nil {
		return base, nil, nil, err
	}
	if _, err := os.Stat(s.SourcePath(base)); err != nil {
		return base, nil, nil, errors.WithHint(
			errors.Wrapf(err, "base source %s", base.Tag),
			"set data_dir or the pollutant's file in the config")
	}
	var others []airquality.Pollutant
	var skipped []string
	for _, p := range s.Catalog.Pollutants() {
		if p.Tag == base.Tag {
			continue
		}
		if _, err := os.Stat(s.SourcePath(p)); err != nil {
			skipped = append(skipped, p.Tag)
			continue
		}
		others = append(others, p)
	}
	return base, others, skipped, nil
}

// fingerprints hashes the planned sources in merge order.
func (s *Stage) fingerprints(base airquality.Pollutant, others []airquality.Pollutant) ([]Fingerprint, error) {
	all := append([]airquality.Pollutant{base}, others...)
	out := make([]Fingerprint, 0, len(all))
	for _, p := range all {
		fp, err := FingerprintFile(p.Tag, s.SourcePath(p))
		if err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, nil
}

// Build always re-reads the sources, merges them and writes the merged CSV
// plus its manifest.
func (s *Stage) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	res, err := s.build(ctx)
	s.Metrics.Observe("merge", start, err)
	return res, err
}

func (s *Stage) build(ctx context.Context) (*BuildResult, error) {
	if s.MergedPath == "" {
		return nil, errors.InvalidInputf("merged path is not set")
	}
	base, others, skipped, err := s.plan()
	if err != nil {
		return nil, err
	}
	for _, tag := range skipped {
		s.log().Warnw("source file missing, pollutant left out of merge", "pollutant", tag)
	}

	fps, err := s.fingerprints(base, others)
	if err != nil {
		return nil, err
	}

	baseSrc, err := OpenSource(s.SourcePath(base), base)
	if err != nil {
		return nil, err
	}
	srcs := make([]Source, 0, len(others))
	for _, p := range others {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := OpenSource(s.SourcePath(p), p)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}

	merged, stats, err := MergeWithStats(baseSrc, srcs, MergeOptions{Mode: s.mode()})
	if err != nil {
		return nil, err
	}
	if err := SaveTable(s.MergedPath, merged); err != nil {
		return nil, errors.Wrap(err, "save merged table")
	}
	m := NewManifest(s.clock().Now(), s.mode(), base.Tag, merged.Len(), s.MergedPath, fps)
	if err := m.Save(s.manifestPath()); err != nil {
		return nil, errors.Wrap(err, "save manifest")
	}

	if s.Metrics != nil {
		s.Metrics.MergedRows.Set(float64(merged.Len()))
		for tag, n := range stats.SourceRows {
			s.Metrics.SourceRows.WithLabelValues(tag).Set(float64(n))
		}
	}
	s.log().Infow("merged sources",
		"run_id", m.RunID,
		"mode", m.Mode,
		"base", base.Tag,
		"sources", len(fps),
		"rows", stats.Rows,
		"fan_out", stats.FanOut,
		"outer_added", stats.OuterAdded,
		"path", s.MergedPath)
	for tag, n := range stats.Unmatched {
		if n > 0 {
			s.log().Debugw("rows without a base match", "pollutant", tag, "rows", n, "kept", s.mode() == ModeOuter)
		}
	}
	return &BuildResult{Table: merged, Manifest: m, Stats: stats, Skipped: skipped}, nil
}

// Load reads the merged artifact of a previous Build. It never re-merges; a
// missing or unreadable artifact is ErrStaleUpstream.
func (s *Stage) Load() (*table.Table, error) {
	t, err := LoadTable(s.MergedPath)
	if err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.MergedRows.Set(float64(t.Len()))
	}
	return t, nil
}

// Ensure loads the artifact when its manifest still matches the sources and
// rebuilds it otherwise. The boolean reports whether a rebuild happened.
func (s *Stage) Ensure(ctx context.Context) (*table.Table, bool, error) {
	fresh, err := s.Fresh()
	if err != nil {
		return nil, false, err
	}
	if fresh {
		t, err := s.Load()
		if err == nil {
			s.cache("hit")
			s.log().Debugw("merged artifact is current", "path", s.MergedPath)
			return t, false, nil
		}
		s.log().Warnw("manifest matches but artifact is unreadable, rebuilding", "error", err)
	}
	s.cache("rebuild")
	res, err := s.Build(ctx)
	if err != nil {
		return nil, false, err
	}
	return res.Table, true, nil
}

// Fresh reports whether the manifest on disk describes the current sources.
func (s *Stage) Fresh() (bool, error) {
	m, err := LoadManifest(s.manifestPath())
	if err != nil {
		if errors.IsStaleUpstream(err) {
			s.cache("miss")
			return false, nil
		}
		return false, err
	}
	base, others, _, err := s.plan()
	if err != nil {
		return false, err
	}
	fps, err := s.fingerprints(base, others)
	if err != nil {
		return false, err
	}
	if !m.Matches(s.mode(), base.Tag, fps) {
		s.cache("miss")
		return false, nil
	}
	return true, nil
}

func (s *Stage) cache(result string) {
	if s.Metrics != nil {
		s.Metrics.StageCache.WithLabelValues(result).Inc()
	}
}
