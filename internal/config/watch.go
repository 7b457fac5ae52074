package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// WatchFile calls onChange with the re-read service configuration each time
// the config file is written or replaced, until ctx is done. Invalid
// contents are logged and skipped.
func WatchFile(ctx context.Context, path string, logs *zap.Logger, onChange func(*ServiceConf)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// watch the directory so atomic replaces (rename over) are seen
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to watch %s", path)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				cfg, err := readServiceFile(path)
				if err != nil {
					logs.Warn("ignoring config file change", zap.String("path", path), zap.Error(err))
					continue
				}
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logs.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func readServiceFile(path string) (*ServiceConf, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	cfg := &ServiceConf{}
	if err := yamlUnmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
