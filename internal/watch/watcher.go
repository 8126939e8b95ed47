// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback after files under a set of pack source
// directories change. Events arriving within the debounce window are
// coalesced into one call carrying every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are editor and VCS artefacts that never trigger a callback.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories watched recursively.
		Roots []string
		// Patterns are doublestar globs matched against a path relative to its
		// root, e.g. "**/*.json". An empty slice matches every file.
		Patterns []string
		// Debounce is the quiet period after the last event. Zero or negative
		// values fall back to the default.
		Debounce time.Duration
		// OnChange receives the sorted absolute paths that changed.
		OnChange func(ctx context.Context, changed []string) error
		Logger   *log.Logger
	}

	// Watcher monitors the roots and fires OnChange once per burst of events.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		roots    []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

// New validates cfg and registers every directory under the roots.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("watch: no roots to watch")
	}
	for _, pat := range cfg.Patterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}

	roots := make([]string, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", r, err)
		}
		roots = append(roots, abs)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{cfg: cfg, fsw: fsw, roots: roots, debounce: debounce, logger: logger}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			// Retry once the running callback has finished.
			mu.Lock()
			timer.Reset(w.debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Warn("change handler failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Debug("closing watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.relevant(evt.Name) {
				continue
			}
			w.logger.Debug("file changed", "path", evt.Name, "op", evt.Op.String())

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("not watching inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(root, path+string(filepath.Separator)) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch: register %s: %w", root, err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if root, ok := w.rootOf(path); ok && !w.ignored(root, path+string(filepath.Separator)) {
		if err := w.addTree(path); err != nil {
			w.logger.Warn("not watching new directory", "path", path, "err", err)
		}
	}
}

// rootOf returns the watched root containing path.
func (w *Watcher) rootOf(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

// relevant reports whether a change to path should trigger the callback.
func (w *Watcher) relevant(path string) bool {
	root, ok := w.rootOf(path)
	if !ok || w.ignored(root, path) {
		return false
	}
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	rel := relSlash(root, path)
	for _, pat := range w.cfg.Patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(root, path string) bool {
	rel := relSlash(root, path)
	for _, pat := range defaultIgnores {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		rel += "/"
	}
	return filepath.ToSlash(rel)
}
