package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long Watch waits after the last write event before
// reloading. Writers truncate then write, and editors save atomically via
// rename; reloading mid-sequence would observe a partial file.
const settleDelay = 100 * time.Millisecond

// Watch monitors path for changes and calls onChange with the newly loaded
// Config once the file has settled after a write. It runs until ctx is
// cancelled.
//
// If a reload fails (invalid YAML, failed validation) or the file is empty,
// the previous config remains active and Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching for changes", "path", path)

	settle := time.NewTimer(settleDelay)
	if !settle.Stop() {
		<-settle.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only react to write or create events; create covers editors
			// that save via rename.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Restart the settle timer so a burst of events (truncate,
			// write, rename) triggers a single reload of the final content.
			if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(settleDelay)

		case <-settle.C:
			reload(path, onChange)
			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// reload loads the settled file and hands it to onChange. An empty file is
// treated as a partial write still in flight, never as a valid config.
func reload(path string, onChange func(*Config)) {
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		slog.Warn("config: ignoring empty or unreadable config file", "path", path, "err", err)
		return
	}

	cfg, err := Load(path)
	if err != nil {
		slog.Error("config: reload failed, keeping previous config",
			"path", path, "err", err)
		return
	}

	slog.Info("config: reloaded", "path", path)
	onChange(cfg)
}
