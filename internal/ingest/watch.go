package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch calls onChange each time one of the log files is written or
// replaced, until ctx is cancelled. Each call is expected to re-run a full
// analysis over the files' current contents.
//
// The parent directories are watched rather than the files, so a save that
// renames a new file over the log keeps being followed.
func Watch(ctx context.Context, paths []string, onChange func(path string), log *zap.SugaredLogger) error {
	watched := make(map[string]string, len(paths)) // cleaned absolute path -> caller's path
	dirs := make(map[string]bool)
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return err
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		watched[abs] = p
		dirs[filepath.Dir(abs)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return err
		}
	}
	log.Infow("watching logs for changes", "paths", paths)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path, ours := watched[filepath.Clean(event.Name)]
			if !ours {
				continue
			}
			// A rename over the log arrives as Create on its path.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debugw("log changed", "path", path, "op", event.Op.String())
			onChange(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("watcher error", "err", err)
		}
	}
}
