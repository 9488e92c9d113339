package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions tunes a config watcher. Zero values select the defaults.
type WatchOptions struct {
	// Debounce collapses bursts of file events into one reload. Default
	// 250ms.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// Watch reloads path whenever it changes and hands the result to onChange.
// Files that fail to load or validate are skipped with a warning, so a
// half-saved edit never replaces a good configuration. The watch follows the
// parent directory because editors typically replace files by rename.
func Watch(ctx context.Context, path string, onChange func(*Config), opts WatchOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{watcher: fsw, cancel: cancel, logger: logger}
	w.wg.Add(1)
	go w.loop(watchCtx, path, onChange, opts.Debounce)
	return w, nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, path string, onChange func(*Config), debounce time.Duration) {
	defer w.wg.Done()

	target := filepath.Clean(path)
	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			cfg, err := Load(path)
			if err != nil {
				w.logger.Warn("config reload skipped", "error", err)
				return
			}
			w.logger.Info("config reloaded", "path", path)
			onChange(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}
