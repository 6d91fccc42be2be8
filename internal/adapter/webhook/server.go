package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	usecase "github.com/bkyoung/review-pipeline/internal/usecase/webhook"
)

const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// Server is the inbound webhook HTTP server.
type Server struct {
	server  *http.Server
	config  ServerConfig
	service *usecase.Service
	logger  *slog.Logger
}

// NewServer builds the webhook server around the ingestion use case.
func NewServer(cfg ServerConfig, service *usecase.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		config:  cfg,
		service: service,
		logger:  logger.With("component", "webhook"),
	}

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.routes(),
		ReadTimeout: cfg.ReadTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Post("/api/v1/webhooks/github/pull_request", s.handlePullRequest)

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handlePullRequest(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerEvent) != "pull_request" {
		// Pings and other event types are acknowledged without work.
		w.WriteHeader(http.StatusOK)
		return
	}

	deliveryID := r.Header.Get(headerDelivery)
	signature := r.Header.Get(headerSignature)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		s.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err, "delivery_id", deliveryID)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	err = s.service.Receive(r.Context(), body, signature, deliveryID)
	switch {
	case err == nil:
		// Acknowledged as soon as the event is on the bus; downstream
		// processing is asynchronous.
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, usecase.ErrInvalidSignature):
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, usecase.ErrMalformedPayload):
		w.WriteHeader(http.StatusBadRequest)
	default:
		s.logger.ErrorContext(r.Context(), "webhook processing failed",
			"error", err, "delivery_id", deliveryID)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("webhook server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server failed", "error", err)
		}
	}()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}
