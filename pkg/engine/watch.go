package engine

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldex/pkg/logger"
)

// DefaultDebounce batches bursts of filesystem events (an editor save
// touches several files) into a single reload.
const DefaultDebounce = 500 * time.Millisecond

// Watch monitors the corpus root for changes and triggers a stop-the-world
// Reload after each debounced burst of events. It blocks until the context
// is canceled.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create corpus watcher")
	}
	defer watcher.Close()

	if err := addRecursive(watcher, e.root); err != nil {
		return err
	}

	log := logger.G(ctx).WithField("root", e.root)
	log.WithField("debounce", debounce.String()).Info("watching corpus for changes")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New directories must be watched before their contents change.
			if event.Op.Has(fsnotify.Create) {
				_ = addRecursive(watcher, event.Name)
			}
			log.WithField("event", event.String()).Debug("corpus change detected")
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("corpus watcher error")

		case <-timerC:
			timer = nil
			timerC = nil
			if err := e.Reload(ctx); err != nil {
				log.WithError(err).Error("corpus reload failed; keeping previous snapshot")
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may have vanished between the event and the walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := watcher.Add(path); addErr != nil {
			return errors.Wrapf(addErr, "failed to watch %s", path)
		}
		return nil
	})
}
