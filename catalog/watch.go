package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of filesystem events an editor fires per
// save into a single reload.
const watchDebounce = 250 * time.Millisecond

// Watch reloads the catalog at source whenever it changes on disk, calling
// onChange with each successfully loaded catalog. Broken intermediate states
// are logged and skipped, keeping the previous catalog live. It blocks until
// ctx is done.
//
// source is the same path given to Open: the parent directory is watched for
// file catalogs because editors replace rather than rewrite files.
func Watch(ctx context.Context, source string, onChange func(*Catalog)) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to watch catalog: %w", err)
	}
	isDir := info.IsDir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch catalog: %w", err)
	}
	defer watcher.Close()

	dir := source
	if !isDir {
		dir = filepath.Dir(source)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logger := slog.With("component", "catalog")
	target := filepath.Clean(source)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, isDir, target) {
				continue
			}
			pending = time.After(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", slog.Any("error", err))

		case <-pending:
			pending = nil
			cat, err := Open(source)
			if err != nil {
				logger.Warn("catalog reload failed, keeping previous",
					slog.Any("error", err))
				continue
			}
			logger.Info("catalog reloaded", slog.Int("clips", cat.Len()))
			onChange(cat)
		}
	}
}

// relevant filters watcher noise: for a file catalog only events on the file
// itself count, for a directory catalog only events on audio files.
func relevant(event fsnotify.Event, isDir bool, target string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if isDir {
		return IsAudioFile(event.Name)
	}
	return filepath.Clean(event.Name) == target
}
