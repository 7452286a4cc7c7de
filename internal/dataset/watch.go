package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
)

// DefaultDebounce is how long Watch waits after the last source change
// before rebuilding.
const DefaultDebounce = 500 * time.Millisecond

// Watch rebuilds the merged artifact whenever a source file changes, until
// ctx is done. Bursts of events within debounce trigger one rebuild. onBuild
// receives every rebuild outcome; a failed rebuild does not stop watching.
func (s *Stage) Watch(ctx context.Context, debounce time.Duration, onBuild func(*BuildResult, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer w.Close()

	targets := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for _, p := range s.Catalog.Pollutants() {
		path := filepath.Clean(s.SourcePath(p))
		targets[path] = struct{}{}
		dirs[filepath.Dir(path)] = struct{}{}
	}
	// Directories, not files: editors and downloads often replace the file.
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return errors.Wrapf(err, "watch %s", d)
		}
	}
	s.log().Infow("watching sources", "dirs", len(dirs), "files", len(targets), "debounce", debounce)
	return s.watchLoop(ctx, w.Events, w.Errors, targets, debounce, onBuild)
}

func (s *Stage) watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	targets map[string]struct{}, debounce time.Duration, onBuild func(*BuildResult, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var timer clockwork.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, tracked := targets[filepath.Clean(ev.Name)]; !tracked {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			s.log().Debugw("source changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = s.clock().NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.Chan()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			s.log().Warnw("watcher error", "error", err)
		case <-fire:
			fire = nil
			timer = nil
			res, err := s.Build(ctx)
			if err != nil {
				s.log().Errorw("rebuild failed", "error", err)
			}
			if onBuild != nil {
				onBuild(res, err)
			}
		}
	}
}
