package ingest

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-ingests knowledge files as they are created or rewritten, so
// edits land in the index without a restart. Deletes are ignored: stale
// passages age out on the next full reload.
type Watcher struct {
	loader  *Loader
	watcher *fsnotify.Watcher
}

func NewWatcher(loader *Loader) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{loader: loader, watcher: w}, nil
}

// Watch monitors the loader's directory until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.watcher.Add(w.loader.dir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				ext := strings.ToLower(filepath.Ext(event.Name))
				if _, watched := watchedExtensions[ext]; !watched {
					continue
				}
				if n, err := w.loader.LoadFile(ctx, event.Name); err != nil {
					log.Printf("ingest: reload %s failed: %v", event.Name, err)
				} else {
					log.Printf("ingest: reloaded %s (%d chunks)", event.Name, n)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("ingest: watch error: %v", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
