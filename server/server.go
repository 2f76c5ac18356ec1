// Package server exposes the operational HTTP endpoints: health, manual
// poll triggers and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketbot/poll"
)

// Engine is a poll engine that can be triggered manually.
type Engine interface {
	Name() string
	State() poll.State
	RunOnce(ctx context.Context) error
}

// Server handles HTTP requests.
type Server struct {
	notifier Engine
	booster  Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Notifier Engine
	Booster  Engine
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		notifier: cfg.Notifier,
		booster:  cfg.Booster,
		gatherer: cfg.Gatherer,
		logger:   cfg.Logger,
	}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handleTrigger(s.notifier))
	mux.HandleFunc("/boostz", s.handleTrigger(s.booster))
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // manual triggers run a full cycle, retries included
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engines := map[string]string{}
	for _, e := range []Engine{s.notifier, s.booster} {
		if e != nil {
			engines[e.Name()] = e.State().String()
		}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"status": "healthy", "engines": engines})
}

func (s *Server) handleTrigger(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if e == nil {
			http.Error(w, "Engine not configured", http.StatusNotFound)
			return
		}

		s.logger.Info("Manual cycle triggered", "engine", e.Name())

		// The cycle finishes even if the caller disconnects.
		err := e.RunOnce(context.WithoutCancel(r.Context()))
		switch {
		case errors.Is(err, poll.ErrBusy):
			writeJSON(w, s.logger, http.StatusConflict, map[string]string{"status": "busy", "engine": e.Name()})
		case err != nil:
			s.logger.Error("Manual cycle failed", "engine", e.Name(), "error", err)
			writeJSON(w, s.logger, http.StatusInternalServerError, map[string]string{"status": "failed", "engine": e.Name(), "error": err.Error()})
		default:
			writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "completed", "engine": e.Name()})
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}
