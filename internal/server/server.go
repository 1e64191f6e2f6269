// Package server exposes the OAuth2 token endpoint over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vyrodovalexey/avoauthd/internal/config"
	"github.com/vyrodovalexey/avoauthd/internal/oauth"
	"github.com/vyrodovalexey/avoauthd/internal/observability"
	"github.com/vyrodovalexey/avoauthd/internal/token"
)

// Server is the HTTP server hosting the token endpoint.
type Server struct {
	config   *config.ServerConfig
	engine   *gin.Engine
	srv      *http.Server
	resolver oauth.Resolver
	issuer   token.Issuer
	reporter *oauth.Reporter
	logger   observability.Logger
	registry *prometheus.Registry
}

// Option is a functional option for the server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsRegistry sets the registry served on /metrics.
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// New creates the token endpoint server.
func New(
	cfg *config.ServerConfig,
	resolver oauth.Resolver,
	issuer token.Issuer,
	reporter *oauth.Reporter,
	opts ...Option,
) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if issuer == nil {
		return nil, errors.New("issuer is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}

	s := &Server{
		config:   cfg,
		resolver: resolver,
		issuer:   issuer,
		reporter: reporter,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	if cfg.RateLimit != nil {
		engine.Use(RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	engine.POST("/token", s.handleToken)
	engine.GET("/healthz", s.handleHealth)
	if s.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	s.engine = engine
	s.srv = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the HTTP handler, used in tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the server until it fails or is shut down. When TLS is
// configured with a client CA, client certificates are requested but not
// required, so the mutual-TLS path can coexist with secret-based paths.
func (s *Server) Start() error {
	if s.config.TLS != nil {
		tlsConfig, err := buildTLSConfig(s.config.TLS)
		if err != nil {
			return err
		}
		s.srv.TLSConfig = tlsConfig

		s.logger.Info("token endpoint listening",
			observability.String("address", s.config.ListenAddress),
			observability.Bool("tls", true),
		)
		return s.srv.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}

	s.logger.Info("token endpoint listening",
		observability.String("address", s.config.ListenAddress),
		observability.Bool("tls", false),
	)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleHealth serves liveness probes.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// buildTLSConfig assembles the listener TLS configuration.
func buildTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.ClientCAFile != "" {
		caPEM, err := os.ReadFile(cfg.ClientCAFile) //nolint:gosec // path comes from validated configuration
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse client CA file %s", cfg.ClientCAFile)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	}

	return tlsConfig, nil
}
