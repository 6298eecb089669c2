// Package server exposes the scoring service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/openfroyo/scorekeeper/pkg/service"
)

// DefaultMaxBodyBytes bounds the size of datasets and fixtures.
const DefaultMaxBodyBytes = 16 << 20

// Server routes HTTP requests to a scoring service.
type Server struct {
	svc     *service.Service
	logger  zerolog.Logger
	router  *mux.Router
	maxBody int64
}

// New creates a server over svc.
func New(svc *service.Service, logger zerolog.Logger) *Server {
	s := &Server{
		svc:     svc,
		logger:  logger.With().Str("component", "server").Logger(),
		maxBody: DefaultMaxBodyBytes,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if tel := s.svc.Telemetry(); tel != nil {
		r.Handle("/metrics", tel.Metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/problems", s.listProblems).Methods(http.MethodGet)
	v1.HandleFunc("/problems/{problem}/constraints", s.listConstraints).Methods(http.MethodGet)
	v1.HandleFunc("/problems/{problem}/score", s.score).Methods(http.MethodPost)
	v1.HandleFunc("/problems/{problem}/constraints/{constraint}/verify", s.verify).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.listPasses).Methods(http.MethodGet)
	v1.HandleFunc("/history/{pass}", s.getPass).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return r
}

// Handler returns the routes wrapped with panic recovery, compression and
// access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	return handlers.LoggingHandler(s.logger, h)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Scoring service listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down scoring service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
