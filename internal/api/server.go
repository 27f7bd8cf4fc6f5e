// Package api serves the collector's status board, stored snapshots and
// transition log over a read-only HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/store"
)

const (
	// APIKeyHeader carries the shared key when one is configured.
	APIKeyHeader = "X-API-Key"

	DefaultListen    = "127.0.0.1:8080"
	DefaultRateLimit = 20.0
	DefaultBurst     = 40

	shutdownTimeout = 5 * time.Second
)

// Config controls the query API listener.
type Config struct {
	Enabled   bool    `toml:"enabled"`
	Listen    string  `toml:"listen"`
	APIKey    string  `toml:"api_key"`
	RateLimit float64 `toml:"rate_limit"` // requests per second per client
	Burst     int     `toml:"burst"`
}

// DefaultConfig returns the stock API settings.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Listen:    DefaultListen,
		RateLimit: DefaultRateLimit,
		Burst:     DefaultBurst,
	}
}

// Board is the live view the API reads from. *engine.Collector satisfies it.
type Board interface {
	Devices() []engine.Device
	Snapshot() engine.BoardSnapshot
	Subscribe() <-chan engine.Transition
	Unsubscribe(ch <-chan engine.Transition)
}

// Server is the HTTP query API.
type Server struct {
	cfg    Config
	board  Board
	reader store.Reader
	log    zerolog.Logger
	router *gin.Engine

	srv      *http.Server
	listener net.Listener
}

// New builds the router. Call Listen and Serve to start it.
func New(cfg Config, board Board, reader store.Reader, log zerolog.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}

	s := &Server{cfg: cfg, board: board, reader: reader, log: log}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	v1 := r.Group("/api/v1")
	v1.GET("/health", s.handleHealth)

	protected := v1.Group("")
	protected.Use(RateLimitMiddleware(NewRateLimiter(s.cfg.RateLimit, s.cfg.Burst), s.log))
	protected.Use(APIKeyMiddleware(s.cfg.APIKey, s.log))
	{
		protected.GET("/devices", s.handleDevices)
		protected.GET("/devices/:device/ifaces", s.handleDeviceIfaces)
		protected.GET("/interfaces", s.handleInterfaces)
		protected.GET("/events", s.handleEvents)
		protected.GET("/events/stream", s.handleStream)
	}
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bind api listener %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve answers requests until ctx is cancelled. Listen must have succeeded.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.listener.Addr().String()).
			Bool("auth", s.cfg.APIKey != "").
			Msg("API listening")
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("API request")
	}
}
