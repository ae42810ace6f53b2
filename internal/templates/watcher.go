package templates

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the catalog when files in the template directory change.
type Watcher struct {
	catalog      *Catalog
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	debounceTime time.Duration
}

// NewWatcher creates a watcher over the catalog's directory.
func NewWatcher(catalog *Catalog, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		catalog:      catalog,
		watcher:      w,
		logger:       logger,
		debounceTime: 2 * time.Second, // debounce rapid editor writes
	}, nil
}

// Start watches the template directory until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir, err := filepath.Abs(w.catalog.dir)
	if err != nil {
		return fmt.Errorf("failed to resolve template directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch template directory %s: %w", dir, err)
	}

	w.logger.Info("watching template directory", slog.String("dir", dir))
	go w.watchLoop(ctx)
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: editors fire several events per save.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("template watcher error", "error", err)
		case <-reload:
			if err := w.catalog.Load(); err != nil {
				// Keep serving the previous catalog on a broken reload.
				w.logger.Error("template reload failed, keeping previous catalog", "error", err)
				continue
			}
			w.logger.Info("template catalog reloaded")
		}
	}
}
