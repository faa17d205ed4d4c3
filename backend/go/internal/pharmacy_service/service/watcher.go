package service

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchSource calls onChange after writes to the file at path settle for debounce.
// The parent directory is watched so editors that replace the file are handled.
// It blocks until ctx is cancelled.
func WatchSource(ctx context.Context, path string, debounce time.Duration, onChange func(), log *logger.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.Info(fmt.Sprintf("Watching catalog source %s", abs))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			log.Info("Catalog source changed, refreshing")
			onChange()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(models.ErrorInfo{Message: werr.Error()}).Warn("File watcher error")
		}
	}
}
