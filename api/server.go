// Package api provides the HTTP API server for LawAudit
// Accepts invoices over HTTP, runs the audit engine and recovery policies, and serves stored runs
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"lawaudit/db"
	"lawaudit/db/clickhouse"
	"lawaudit/db/ingestion"
	"lawaudit/decision/audit"
	"lawaudit/decision/policy"
	"lawaudit/pkg/platform"
	"lawaudit/pkg/redact"
)

// Version is reported by /version and /health
var Version = "0.1.0"

// Analytics is served by the ClickHouse store
type Analytics interface {
	LeakageByType(ctx context.Context, since time.Time) ([]clickhouse.TypeLeakage, error)
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	engine     *audit.Engine
	policies   *policy.Engine
	custom     []policy.Policy
	store      db.ReportStore
	cache      ingestion.ReportCache
	analytics  Analytics
	recorder   *ingestion.Recorder
	redactor   *redact.Redactor
	config     *Config
	startedAt  time.Time
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
	APIKey         string   // empty disables the X-API-Key check
	RedactPII      bool     // mask personal data in responses and stored runs
	RedactNames    []string // extra personnel names to mask
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		CORSOrigins:    []string{"*"},
	}
}

// ConfigFromEnv overlays environment variables on the defaults
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Port = platform.GetEnvInt("PORT", cfg.Port)
	cfg.ReadTimeout = platform.GetEnvDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = platform.GetEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.RequestTimeout = platform.GetEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxRequestSize = int64(platform.GetEnvInt("MAX_REQUEST_BYTES", int(cfg.MaxRequestSize)))
	cfg.APIKey = platform.GetEnv("API_KEY", "")
	cfg.RedactPII = platform.GetEnvBool("REDACT_PII", false)
	if origins := platform.GetEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if names := platform.GetEnv("REDACT_NAMES", ""); names != "" {
		cfg.RedactNames = splitList(names)
	}
	return cfg
}

// Option wires optional backends into the server
type Option func(*Server)

// WithStore enables persistence and the /audits endpoints
func WithStore(store db.ReportStore) Option {
	return func(s *Server) { s.store = store }
}

// WithCache enables report caching by input digest
func WithCache(c ingestion.ReportCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithAnalytics enables /analytics endpoints
func WithAnalytics(a Analytics) Option {
	return func(s *Server) { s.analytics = a }
}

// WithPolicies adds custom policies evaluated after the defaults
func WithPolicies(p []policy.Policy) Option {
	return func(s *Server) { s.custom = p }
}

// WithEngine replaces the default audit engine
func WithEngine(e *audit.Engine) Option {
	return func(s *Server) { s.engine = e }
}

// NewServer creates a new API server
func NewServer(config *Config, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	policies, err := policy.NewEngine()
	if err != nil {
		return nil, err
	}

	s := &Server{
		engine:    audit.NewEngine(),
		policies:  policies,
		config:    config,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.policies.ValidateAll(s.custom); err != nil {
		return nil, fmt.Errorf("invalid custom policy: %w", err)
	}

	names := append(append([]string{}, redact.DefaultPersonnel...), config.RedactNames...)
	s.redactor = redact.New(names...)
	s.recorder = ingestion.NewRecorder(s.store, s.cache).Redacting(s.config.RedactPII)

	return s, nil
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))
	r.Use(s.corsMiddleware)

	// Health endpoints (for ALB/NLB)
	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/version", s.handleVersion)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware(s.config.APIKey))

		r.Post("/audit", s.handleAudit)
		r.Get("/audits", s.handleListAudits)
		r.Get("/audits/{id}", s.handleGetAudit)
		r.Get("/analytics/leakage", s.handleLeakageByType)
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	log.Info().
		Int("port", s.config.Port).
		Str("version", Version).
		Bool("store", s.store != nil).
		Bool("cache", s.cache != nil).
		Bool("redact_pii", s.config.RedactPII).
		Int("custom_policies", len(s.custom)).
		Msg("Starting LawAudit API Server")

	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		log.Info().Msg("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		// Check if origin is allowed
		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
