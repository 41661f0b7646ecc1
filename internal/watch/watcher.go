// Package watch re-runs the analysis pipeline when source files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/includeguard/includeguard/internal/config"
	"github.com/includeguard/includeguard/internal/parser"
	"github.com/includeguard/includeguard/internal/types"
)

// Watcher monitors a project tree and invokes a callback with the batch of
// changed files once events have settled.
type Watcher struct {
	watcher  *fsnotify.Watcher
	cfg      *config.Config
	scanner  *parser.Scanner
	debounce time.Duration
	onChange func(paths []string)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	// Last seen content hash per path, to drop events that did not
	// actually change the bytes (editors often write twice).
	hashes sync.Map // string -> uint64
}

// New creates a watcher over the configured project. onChange receives the
// debounced batch of changed or removed file paths.
func New(cfg *config.Config, scanner *parser.Scanner, onChange func(paths []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Watch.DebounceMs
	if debounce <= 0 {
		debounce = types.DefaultWatchDebounceMs
	}

	return &Watcher{
		watcher:  fsw,
		cfg:      cfg,
		scanner:  scanner,
		debounce: time.Duration(debounce) * time.Millisecond,
		onChange: onChange,
		pending:  make(map[string]struct{}),
	}, nil
}

// Start adds watches for every directory under the project root and begins
// processing events. It returns once the event loop is running.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	if err := w.addWatches(w.cfg.Project.Root); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Project.Root, err)
	}

	w.wg.Add(1)
	go w.processEvents(ctx)

	log.Infof("watching %s (debounce %s)", w.cfg.Project.Root, w.debounce)
	return nil
}

// Stop cancels the event loop and waits for it to exit. Pending debounced
// events are dropped.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		// Resolve symlinks so a cycle cannot loop the walk forever.
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if w.excludedDir(info.Name()) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Warnf("cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, d := range w.cfg.Scan.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("watch error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	info, err := os.Stat(path)
	if err != nil {
		// Gone: a removal of a tracked file still triggers a rescan.
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.scanner.ShouldScan(path) {
			w.hashes.Delete(path)
			w.enqueue(path)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.excludedDir(info.Name()) {
			if err := w.watcher.Add(path); err != nil {
				log.Warnf("cannot watch new directory %s: %v", path, err)
			}
		}
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if !w.scanner.ShouldScan(path) {
		return
	}
	if !w.contentChanged(path) {
		log.Debugf("unchanged content, skipping %s", path)
		return
	}

	w.enqueue(path)
}

// contentChanged hashes the file and reports whether the bytes differ from
// the last event for the same path.
func (w *Watcher) contentChanged(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	sum := xxhash.Sum64(data)

	if prev, ok := w.hashes.Load(path); ok && prev.(uint64) == sum {
		return false
	}
	w.hashes.Store(path, sum)
	return true
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	log.Debugf("processing %d debounced file events", len(paths))
	if w.onChange != nil {
		w.onChange(paths)
	}
}
