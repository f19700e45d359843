package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/logger"
	"github.com/dpdplabs/pii-scanner/internal/scan"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Server exposes the rule engine over HTTP: clients POST text and receive
// findings plus per-candidate decisions. The scanner it wraps shares one
// immutable rule set across all request handlers.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	scanner *scan.Scanner
	router  *mux.Router
	server  *http.Server

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates an analyze API server.
func New(cfg *config.Config, scanner *scan.Scanner, log *logger.Logger) *Server {
	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		scanner:  scanner,
		router:   mux.NewRouter(),
		limiters: make(map[string]*rate.Limiter),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting analyze API server", zap.Int("port", s.config.Server.Port))
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping analyze API server")
	return s.server.Shutdown(ctx)
}

// rateLimitMiddleware enforces a per-client request rate.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.clientLimiter(clientIP(r)).Allow() {
			s.logger.Warn("Rate limit exceeded", zap.String("client", clientIP(r)))
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientLimiter returns the rate limiter for a client, creating it on first use.
func (s *Server) clientLimiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[client]
	if !ok {
		perSecond := rate.Limit(float64(s.config.Server.RequestsPerMin) / 60.0)
		limiter = rate.NewLimiter(perSecond, s.config.Server.RequestsPerMin)
		s.limiters[client] = limiter
	}
	return limiter
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
