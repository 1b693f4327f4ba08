package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// settleDelay lets editors finish writing before the file is re-read
const settleDelay = 250 * time.Millisecond

// Watch re-reads configPath whenever it changes and passes every valid
// result to onChange. Invalid edits are logged and skipped. Watch blocks
// until ctx is cancelled.
func Watch(ctx context.Context, configPath string, logger *logrus.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}
	logger.WithField("config_path", absPath).Info("Config watcher started")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.After(settleDelay)
			}

		case <-pending:
			pending = nil
			if _, err := os.Stat(absPath); err != nil {
				// LoadConfig would recreate a missing file with defaults
				continue
			}
			cfg, err := LoadConfig(absPath)
			if err != nil {
				logger.WithError(err).WithField("config_path", absPath).Warn("Ignoring invalid config change")
				continue
			}
			logger.WithField("config_path", absPath).Info("Config reloaded")
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Error("Config watcher error")
		}
	}
}

// ApplyLogLevel updates a live logger from a reloaded config
func ApplyLogLevel(logger *logrus.Logger, cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return
	}
	if logger.GetLevel() != level {
		logger.SetLevel(level)
		logger.WithField("level", level.String()).Info("Log level changed")
	}
}
