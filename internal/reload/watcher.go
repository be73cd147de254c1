package reload

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/kamusis/skillbase/internal/kb"
	"github.com/kamusis/skillbase/internal/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// BuildFunc produces a fresh base from the corpus.
type BuildFunc func(ctx context.Context) (*kb.Base, error)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Roots    []string
	Debounce time.Duration
	// OnReload, if set, is called after every rebuild attempt with the new
	// base or the build error.
	OnReload func(b *kb.Base, err error)
}

// Watcher rebuilds the base in a Holder whenever files under the corpus
// roots change. Bursts of events within the debounce window cause a single
// rebuild.
type Watcher struct {
	holder *Holder
	build  BuildFunc
	opts   WatcherOptions
}

// NewWatcher returns a watcher that refreshes holder using build.
func NewWatcher(holder *Holder, build BuildFunc, opts WatcherOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{holder: holder, build: build, opts: opts}
}

// Run watches until ctx is done. It returns nil on cancellation and an error
// only when the watch cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	log := logger.G(ctx).WithField("component", "reload")

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	for _, root := range w.opts.Roots {
		if err := addTree(fw, root); err != nil {
			return err
		}
	}
	log.WithField("roots", w.opts.Roots).Info("watching corpus for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			log.WithField("file", ev.Name).WithField("op", ev.Op.String()).Debug("corpus change detected")
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						log.WithError(err).Warn("cannot watch new directory")
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("file watcher error")

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

// reload builds a new base and swaps it in. On failure the current base
// stays in place.
func (w *Watcher) reload(ctx context.Context) {
	log := logger.G(ctx).WithField("component", "reload")

	b, err := w.build(ctx)
	if err != nil {
		log.WithError(err).Error("reload failed, keeping previous knowledge base")
	} else {
		w.holder.Swap(b)
		log.WithField("documents", b.Store.Len()).Info("knowledge base reloaded")
	}
	if w.opts.OnReload != nil {
		w.opts.OnReload(b, err)
	}
}

// addTree watches dir and every directory below it. fsnotify does not watch
// recursively. A missing root is skipped.
func addTree(fw *fsnotify.Watcher, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.L.WithField("root", dir).Warn("not watching missing corpus root")
		return nil
	}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
	return errors.Wrapf(err, "failed to watch %s", dir)
}

// relevant drops chmod-only events and editor or VCS dot-files.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return !strings.Contains(filepath.ToSlash(ev.Name), "/.git/")
}
