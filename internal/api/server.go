// Package api exposes the conversation engine over HTTP: a single chat
// endpoint plus health probes, wrapped in recovery, request-id, logging
// and per-IP rate-limit middleware.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
)

// ServerConfig collects the server's dependencies.
type ServerConfig struct {
	// Responder handles chat turns. Required.
	Responder Responder

	// Ready reports readiness for /readyz. Optional.
	Ready func() bool

	// RateLimit is the per-IP request rate in requests per second.
	// Zero disables HTTP rate limiting.
	RateLimit float64

	// RateBurst is the per-IP burst size. Defaults to 5 when RateLimit
	// is set.
	RateBurst int

	Logger *slog.Logger
}

// Server is the HTTP surface of the engine.
type Server struct {
	handler http.Handler
	logger  *slog.Logger
}

// NewServer builds the mux and middleware chain.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, fmt.Errorf("api: Responder is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("api: Logger is required")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/chat", &chatHandler{responder: cfg.Responder, logger: cfg.Logger})
	mux.Handle("GET /healthz", healthzHandler(cfg.Logger))
	mux.Handle("GET /readyz", readyzHandler(cfg.Ready, cfg.Logger))

	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		rl := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
		handler = rateLimitMiddleware(rl, cfg.Logger)(handler)
	}
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)

	return &Server{handler: handler, logger: cfg.Logger}, nil
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
