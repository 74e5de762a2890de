package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

const shutdownTimeout = 10 * time.Second

// Server exposes response links and the in-app response API over HTTP
type Server struct {
	store    db.Store
	notifier services.Notifier
	clock    services.Clock
	settings services.AlertSettings
	logger   *zap.Logger
}

// NewServer creates a webhook server
func NewServer(store db.Store, notifier services.Notifier, clock services.Clock, settings services.AlertSettings, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		notifier: notifier,
		clock:    clock,
		settings: settings,
		logger:   logger,
	}
}

// Router returns the routes without middleware
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// Link clicks from alerts; unauthenticated
	r.HandleFunc(notify.RespondPath, s.respondByToken).Methods(http.MethodGet)

	// In-app endpoints; authentication happens upstream
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/volunteers/{volunteerID}/events/{eventID}/respond", s.respond).Methods(http.MethodPost)
	api.HandleFunc("/volunteers/{volunteerID}/events/{eventID}/decommit", s.decommit).Methods(http.MethodPost)
	api.HandleFunc("/volunteers/{volunteerID}/available_events", s.availableEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{eventID}/check", s.checkEvent).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with panic recovery and a combined access log
func (s *Server) Handler() http.Handler {
	stdLog := zap.NewStdLog(s.logger.Named("http"))
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(stdLog),
		handlers.PrintRecoveryStack(true),
	)(s.Router())
	return handlers.CombinedLoggingHandler(stdLog.Writer(), h)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webhook server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down webhook server: %w", err)
		}
		return nil
	}
}
