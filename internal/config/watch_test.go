package config

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestWatchReloadsConfig(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatal(err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger, func(c *Config) { reloaded <- c })
	}()

	cfg.Logging.Level = "debug"
	deadline := time.After(5 * time.Second)
	// Keep rewriting until the watcher has registered; the interval exceeds the settle delay
	ticker := time.NewTicker(400 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case c := <-reloaded:
			if c.Logging.Level != "debug" {
				// A reload can land between truncate and write
				continue
			}
			ApplyLogLevel(logger, c)
			if logger.GetLevel() != logrus.DebugLevel {
				t.Errorf("Expected logger level debug, got %s", logger.GetLevel())
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		case <-ticker.C:
			if err := cfg.SaveToFile(path); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("Timed out waiting for config reload")
		}
	}
}

func TestApplyLogLevelIgnoresInvalid(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	cfg := DefaultConfig()
	cfg.Logging.Level = "nonsense"
	ApplyLogLevel(logger, cfg)
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected level unchanged, got %s", logger.GetLevel())
	}
}
