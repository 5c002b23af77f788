package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/tagship/pkg/domain/interfaces"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret types.Secret
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret types.Secret) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	releaseUC interfaces.ReleaseUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr: "localhost:8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           newRouter(ctx, cfg, webhookUC, releaseUC),
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}

func newRouter(ctx context.Context, cfg *config, webhookUC interfaces.WebhookUseCase, releaseUC interfaces.ReleaseUseCase) http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)

	webhookHandler := NewWebhookHandler(cfg.webhookSecret, webhookUC)
	router.Post("/hooks/github", webhookHandler.Handle)

	runHandler := NewRunHandler(releaseUC)
	router.Get("/api/runs/{id}", runHandler.Get)

	return router
}
