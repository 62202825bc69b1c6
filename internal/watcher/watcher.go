// Package watcher watches live target paths and reports, debounced, which
// tracked entries changed.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
)

// Watcher monitors live targets and sends the ids of changed entries.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	targets   map[string]string
	debounce  time.Duration
	onChange  chan []string
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Targets maps entry id to the absolute live path.
	Targets     map[string]string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(targets map[string]string) Config {
	return Config{
		Targets:     targets,
		DebounceDur: 2 * time.Second,
	}
}

// New creates a new watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	targets := make(map[string]string, len(cfg.Targets))
	for id, p := range cfg.Targets {
		targets[id] = filepath.Clean(p)
	}
	return &Watcher{
		fsWatcher: fsw,
		targets:   targets,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan []string, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. Files are watched through their parent directory so
// that editors replacing a file by rename are still seen. Directories are
// watched recursively. Targets whose parent does not exist are skipped.
// Returns a channel that receives the sorted ids changed in each burst.
func (w *Watcher) Start() (<-chan []string, error) {
	dirs := make(map[string]struct{})
	for id, target := range w.targets {
		info, err := os.Stat(target)
		if err == nil && info.IsDir() {
			_ = filepath.WalkDir(target, func(p string, d fs.DirEntry, err error) error {
				if err == nil && d.IsDir() {
					dirs[p] = struct{}{}
				}
				return nil
			})
			continue
		}
		parent := filepath.Dir(target)
		if _, err := os.Stat(parent); err != nil {
			log.Warn(log.CatWatcher, "not watching entry, parent missing", "id", id, "path", target)
			continue
		}
		dirs[parent] = struct{}{}
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no watchable targets")
	}

	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	log.Info(log.CatWatcher, "watching", "entries", len(w.targets), "dirs", len(dirs))

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var timer *time.Timer
	pending := make(map[string]struct{})

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			ids := w.matching(event)
			if len(ids) == 0 {
				continue
			}
			for _, id := range ids {
				pending[id] = struct{}{}
			}
			if event.Has(fsnotify.Create) {
				w.addIfDir(event.Name)
			}

			// Reset or start debounce timer
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if len(pending) > 0 {
				ids := make([]string, 0, len(pending))
				for id := range pending {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				// Blocks until the consumer has handled the previous burst
				select {
				case w.onChange <- ids:
					clear(pending)
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// matching returns the ids whose target is, or contains, the event path.
func (w *Watcher) matching(event fsnotify.Event) []string {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return nil
	}
	name := filepath.Clean(event.Name)
	var ids []string
	for id, target := range w.targets {
		if paths.Within(target, name) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (w *Watcher) addIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsWatcher.Add(path); err != nil {
		log.Warn(log.CatWatcher, "could not watch new directory", "path", path, "error", err)
	}
}
