// Package server exposes the ledger, the generation workflows and the mixer
// as a local JSON API for the workstation UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dieter/internal/config"
	"dieter/internal/ledger"
	"dieter/internal/mixer"
	"dieter/internal/studio"

	"github.com/sirupsen/logrus"
)

// HealthChecker reports whether the persistence backend is reachable
type HealthChecker interface {
	Ping() error
}

// SnapshotClock reports when the ledger snapshot was last written
type SnapshotClock interface {
	UpdatedAt(name string) (time.Time, error)
}

// Deps are the components the server routes to
type Deps struct {
	Ledger *ledger.Ledger
	Studio *studio.Studio
	Mixer  *mixer.Engine
	Health HealthChecker
	Logger *logrus.Logger
}

// Server is the local workstation API
type Server struct {
	config     *config.Config
	ledger     *ledger.Ledger
	studio     *studio.Studio
	mixer      *mixer.Engine
	health     HealthChecker
	logger     *logrus.Logger
	startedAt  time.Time
	handler    http.Handler
	httpServer *http.Server
}

// New creates a server and registers its routes
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		config:    cfg,
		ledger:    deps.Ledger,
		studio:    deps.Studio,
		mixer:     deps.Mixer,
		health:    deps.Health,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)
	s.handler = s.panicRecoveryMiddleware(s.requestLoggingMiddleware(s.corsMiddleware(mux)))
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealthCheck)

	// Ledger collections
	mux.HandleFunc("GET /api/tracks", s.handleGetTracks)
	mux.HandleFunc("DELETE /api/tracks/{id}", s.handleDeleteTrack)
	mux.HandleFunc("GET /api/videos", s.handleGetVideos)
	mux.HandleFunc("DELETE /api/videos/{id}", s.handleDeleteVideo)
	mux.HandleFunc("GET /api/lyrics", s.handleGetLyrics)
	mux.HandleFunc("DELETE /api/lyrics/{id}", s.handleDeleteLyric)
	mux.HandleFunc("GET /api/stems", s.handleGetStems)
	mux.HandleFunc("DELETE /api/stems/{id}", s.handleDeleteStem)

	// Derived views
	mux.HandleFunc("GET /api/history", s.handleGetHistory)
	mux.HandleFunc("GET /api/library", s.handleGetLibrary)

	// Credits
	mux.HandleFunc("GET /api/credits", s.handleGetCredits)
	mux.HandleFunc("POST /api/credits/recharge", s.handleRecharge)

	// Generation workflows
	mux.HandleFunc("POST /api/generate/music", s.handleGenerateMusic)
	mux.HandleFunc("POST /api/generate/quick", s.handleQuickCreate)
	mux.HandleFunc("GET /api/generate/quick-prompts", s.handleQuickPrompts)
	mux.HandleFunc("GET /api/generate/costs", s.handleGenerationCosts)
	mux.HandleFunc("POST /api/generate/lyrics", s.handleGenerateLyrics)
	mux.HandleFunc("POST /api/generate/video", s.handleGenerateVideo)
	mux.HandleFunc("POST /api/generate/stems", s.handleSplitStems)

	// Mixer
	mux.HandleFunc("GET /api/mixer", s.handleGetMixerState)
	mux.HandleFunc("GET /api/mixer/events", s.handleMixerEvents)
	mux.HandleFunc("POST /api/mixer/{id}/play", s.handleMixerPlay)
	mux.HandleFunc("POST /api/mixer/{id}/pause", s.handleMixerPause)
	mux.HandleFunc("POST /api/mixer/{id}/stop", s.handleMixerStop)
	mux.HandleFunc("PUT /api/mixer/{id}/gain", s.handleMixerGain)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     s.handler,
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"address": "http://" + s.config.GetAddress(),
			"tracks":  len(s.ledger.Tracks()),
			"credits": s.ledger.Balance(),
		}).Info("Dieter server starting")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the HTTP listener and ends the mixer session
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(shutdownCtx)
	}
	if s.mixer != nil {
		s.mixer.Close()
	}

	s.logger.Info("Server shutdown complete")
	return err
}
