package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Ingester is what a Watcher feeds files into.
type Ingester interface {
	Ingest(ctx context.Context, f File) (*Result, error)
}

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Dir string
	// Delay is the quiet period after the last write before a file is
	// ingested.
	Delay time.Duration
	// OnIngest is called after every attempt, successful or not.
	OnIngest func(path string, res *Result, err error)
	Logger   *slog.Logger
}

// Watcher ingests supported files that appear in a directory.
type Watcher struct {
	dir      string
	delay    time.Duration
	ingester Ingester
	onIngest func(string, *Result, error)
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher over cfg.Dir.
func NewWatcher(ing Ingester, cfg WatchConfig) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	return &Watcher{
		dir:      cfg.Dir,
		delay:    delay,
		ingester: ing,
		onIngest: cfg.OnIngest,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// Run ingests the files already present, then watches for new or rewritten
// ones until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching folder for data files", "dir", w.dir)

	if err := w.scan(ctx); err != nil {
		return err
	}

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !Supported(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// schedule debounces bursts of writes to the same file.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.timers[path] = t
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	res, err := w.ingester.Ingest(ctx, FromPath(path))
	if err != nil {
		w.logger.Error("failed to ingest watched file", "file", path, "error", err)
	}
	if w.onIngest != nil {
		w.onIngest(path, res, err)
	}
}
