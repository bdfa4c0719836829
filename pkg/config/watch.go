package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads envFile whenever it changes, re-applies the logging settings
// to logger and passes the new configuration to onChange (which may be nil).
// Settings other than logging only take effect for components that read them
// from onChange. Watch blocks until ctx is done.
func Watch(ctx context.Context, envFile string, logger *logrus.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(envFile)
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Reload(target)
			if err != nil {
				logger.WithError(err).WithField("file", target).Warn("Ignoring invalid configuration change")
				continue
			}
			cfg.ApplyLogging(logger)
			logger.WithFields(logrus.Fields{
				"file":      target,
				"log_level": cfg.LogLevel.String(),
			}).Info("Configuration reloaded")
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Config watcher error")
		}
	}
}
