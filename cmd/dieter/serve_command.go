package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"dieter/internal/cache"
	"dieter/internal/config"
	"dieter/internal/generation"
	"dieter/internal/metadata"
	"dieter/internal/mixer"
	"dieter/internal/playback"
	"dieter/internal/server"
	"dieter/internal/studio"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workstation API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			probes := cache.NewProbeCache(time.Duration(sess.cfg.Mixer.ProbeCacheMin) * time.Minute)
			defer probes.Close()

			srv := buildServer(sess, probes)

			if sess.cfg.Logging.WatchConfig {
				go func() {
					err := config.Watch(runCtx, ctx.configPath(), sess.logger, func(updated *config.Config) {
						config.ApplyLogLevel(sess.logger, updated)
					})
					if err != nil {
						sess.logger.WithError(err).Warn("Config watcher stopped")
					}
				}()
			}

			return srv.Start(runCtx)
		},
	}
}

// buildServer wires playback, generation and the mixer around the session ledger
func buildServer(sess *session, probes *cache.ProbeCache) *server.Server {
	cfg := sess.cfg
	logger := sess.logger

	prober := metadata.NewProber(cfg.Generation.SupportedFormats, logger)
	fetcher := playback.NewHTTPFetcher(cfg.Mixer.MaxMediaMB*1024*1024, time.Duration(cfg.Mixer.FetchTimeoutSec)*time.Second)

	engine := mixer.NewEngine(sess.ledger, playback.NewFactory(fetcher, prober, probes, logger), mixer.Options{
		DefaultGain: cfg.Mixer.DefaultGain,
		Logger:      logger,
	})
	engine.Watch(sess.ledger)

	client := generation.NewClient(cfg.Generation.BaseURL, cfg.Generation.APIToken,
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second, logger)
	if !client.Configured() {
		logger.Warn("Generation back end is not configured; generation requests will fail")
	}

	st := studio.New(sess.ledger, client, prober, studio.Options{
		Costs: studio.Costs{
			Music:  cfg.Credits.MusicCost,
			Lyrics: cfg.Credits.LyricsCost,
			Video:  cfg.Credits.VideoCost,
			Stems:  cfg.Credits.StemsCost,
		},
		Policy:         studio.Policy(cfg.Credits.Policy),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Logger:         logger,
	})

	logger.WithFields(logrus.Fields{
		"store":   cfg.Store.Path,
		"policy":  cfg.Credits.Policy,
		"credits": sess.ledger.Balance(),
	}).Info("Workstation session ready")

	return server.New(cfg, server.Deps{
		Ledger: sess.ledger,
		Studio: st,
		Mixer:  engine,
		Health: sess.db,
		Logger: logger,
	})
}

