package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rancher/renovate-config/internal/config"
)

// DefaultDebounce is the quiet period a Watcher waits for before re-reading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher re-reads a configuration file whenever it changes on disk.
type Watcher struct {
	Debounce time.Duration
	Logger   *slog.Logger

	// Read loads the watched file. Defaults to File.
	Read func(path string) (config.Source, error)
}

// Watch reads path once, then again after every burst of changes, handing
// each result to fn. It blocks until ctx is cancelled. The parent directory
// is observed so editors that replace the file by rename are still followed.
func (w *Watcher) Watch(ctx context.Context, path string, fn func(config.Source, error)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	read := w.Read
	if read == nil {
		read = File
	}
	fn(read(path))

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	// Each burst gets a fresh timer; ticks from a stopped one are never read.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if w.Logger != nil {
				w.Logger.Warn("watch error", "path", path, "error", err)
			}

		case <-fire:
			timer, fire = nil, nil
			if w.Logger != nil {
				w.Logger.Debug("configuration changed", "path", path)
			}
			fn(read(path))
		}
	}
}
