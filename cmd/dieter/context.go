package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"dieter/internal/config"
	"dieter/internal/database"
	"dieter/internal/ledger"

	"github.com/sirupsen/logrus"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return defaultConfigPath
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.LoadConfig(c.configPath())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session bundles the components every command needs
type session struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *database.Database
	ledger *ledger.Ledger

	logCloser io.Closer
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close database")
	}
	s.logCloser.Close()
}

// openSession builds the logger, opens the store and loads the ledger from it
func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(cfg.Store.Path, logger)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	l := ledger.Open(db, ledger.Options{
		Name:           cfg.Store.Name,
		InitialCredits: cfg.Credits.Initial,
		MaxCredits:     cfg.Credits.Max,
		Logger:         logger,
	})

	return &session{cfg: cfg, logger: logger, db: db, ledger: l, logCloser: logCloser}, nil
}
