// Package watch reports log files that change while the watch command runs.
package watch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// ignoreTTL is how long a path passed to Ignore stays ignored.
const ignoreTTL = time.Minute

// Event is a debounced change to a file matching one of the patterns.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches the directories that log patterns live in and reports
// matching files that are created or written.
type Watcher struct {
	fsw      *fsnotify.Watcher
	patterns []string
	dirs     []string
	debounce time.Duration
	logger   *log.Logger
	ignored  *cache.Cache

	// Events receives debounced changes. It is closed when Run returns.
	Events chan Event
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Watcher for the given log patterns. Each pattern's static
// directory prefix is watched, along with every directory that currently
// holds a match.
func New(patterns []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		logger:   log.New(io.Discard),
		ignored:  cache.New(ignoreTTL, 2*ignoreTTL),
		Events:   make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, pattern := range patterns {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolving pattern %q: %w", pattern, err)
		}
		slashed := filepath.ToSlash(abs)
		if !doublestar.ValidatePattern(slashed) {
			fsw.Close()
			return nil, fmt.Errorf("malformed pattern %q", pattern)
		}
		w.patterns = append(w.patterns, slashed)

		base, _ := doublestar.SplitPattern(slashed)
		w.addDir(filepath.FromSlash(base))

		matches, _ := doublestar.FilepathGlob(abs, doublestar.WithFilesOnly())
		for _, m := range matches {
			w.addDir(filepath.Dir(m))
		}
	}

	if len(w.dirs) == 0 {
		fsw.Close()
		return nil, fmt.Errorf("no watchable directories for %v", patterns)
	}

	return w, nil
}

func (w *Watcher) addDir(dir string) {
	if slices.Contains(w.dirs, dir) {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", "dir", dir, "err", err)
		return
	}
	w.dirs = append(w.dirs, dir)
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return w.dirs
}

// Matches reports whether path matches one of the watched patterns.
func (w *Watcher) Matches(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	name := filepath.ToSlash(abs)
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Ignore suppresses events for paths the caller wrote itself, such as
// artifacts written beside the logs being watched.
func (w *Watcher) Ignore(paths ...string) {
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignored.SetDefault(abs, struct{}{})
		}
	}
}

// Ignored reports whether path was passed to Ignore within the last minute.
func (w *Watcher) Ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, ok := w.ignored.Get(abs)
	return ok
}

// Run forwards debounced events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	defer close(w.Events)

	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if !w.Matches(ev.Name) || w.Ignored(ev.Name) {
				continue
			}
			pending[ev.Name] |= ev.Op
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			for _, p := range paths {
				select {
				case w.Events <- Event{Path: p, Op: pending[p]}:
				case <-ctx.Done():
					return nil
				}
			}
			clear(pending)
		}
	}
}
