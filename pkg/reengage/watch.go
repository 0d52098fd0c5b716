package reengage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dotsetgreg/dotpersona/pkg/logger"
)

const DefaultWatchDebounce = 250 * time.Millisecond

// CatalogWatcher reloads a catalog file when it changes on disk. The parent
// directory is watched so editors that replace the file are seen. Invalid
// edits are logged and skipped; the last good catalog stays in effect.
type CatalogWatcher struct {
	path     string
	debounce time.Duration
	onChange func(Catalog)
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewCatalogWatcher(path string, debounce time.Duration, onChange func(Catalog)) (*CatalogWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &CatalogWatcher{
		path:     filepath.Clean(abs),
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// Start watches until ctx is done or Close is called. It does not block.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return nil
	}
	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return err
	}
	cw.running = true
	go cw.run(ctx)
	logger.InfoCF("reengage", "Watching topic catalog", map[string]any{"path": cw.path})
	return nil
}

// Close stops the watcher and waits for its goroutine.
func (cw *CatalogWatcher) Close() error {
	err := cw.watcher.Close()
	cw.mu.Lock()
	running := cw.running
	cw.mu.Unlock()
	if running {
		<-cw.done
	}
	return err
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.done)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			pending = timer.C
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.WarnCF("reengage", "Catalog watcher error", map[string]any{"error": err.Error()})
		case <-pending:
			pending = nil
			cw.reload()
		}
	}
}

func (cw *CatalogWatcher) reload() {
	cat, err := LoadCatalog(cw.path)
	if err != nil {
		logger.WarnCF("reengage", "Ignoring invalid topic catalog edit", map[string]any{
			"path":  cw.path,
			"error": err.Error(),
		})
		return
	}
	logger.InfoCF("reengage", "Topic catalog reloaded", map[string]any{
		"path":   cw.path,
		"topics": len(cat),
	})
	if cw.onChange != nil {
		cw.onChange(cat)
	}
}
