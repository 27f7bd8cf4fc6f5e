package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Config controls the scrape endpoint.
type Config struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
	Port       int    `toml:"port"`
	Path       string `toml:"path"`
}

// DefaultConfig returns the stock scrape endpoint settings.
func DefaultConfig() Config {
	return Config{Enabled: true, ListenAddr: "0.0.0.0", Port: 9108, Path: "/metrics"}
}

// Addr returns the host:port the endpoint binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.ListenAddr, fmt.Sprint(c.Port))
}

// Server serves a Sink's registry over HTTP.
type Server struct {
	listener net.Listener
	srv      *http.Server
	log      zerolog.Logger
}

// Listen binds the scrape endpoint. Binding happens here, before Serve, so
// that an unusable address is reported at startup.
func Listen(cfg Config, sink *Sink, log zerolog.Logger) (*Server, error) {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("bind metrics endpoint %s: %w", cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(sink.Registry(), promhttp.HandlerOpts{
		Registry: sink.Registry(),
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		listener: ln,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:      log,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve handles scrapes until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.listener.Addr().String()).Msg("Metrics endpoint listening")
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
