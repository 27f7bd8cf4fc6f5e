// Package store persists the last known snapshot of every interface and the
// transition event log.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tonhe/nocwatch/internal/engine"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	DefaultEventRetention = 1000
	DefaultEventLimit     = 200
	MaxEventLimit         = 1000
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrMissingDSN    = errors.New("postgres storage requires a dsn")
)

// Config selects and tunes the storage backend.
type Config struct {
	Driver         string `toml:"driver"`
	DSN            string `toml:"dsn"`
	EventRetention int    `toml:"event_retention"`
	MaxConns       int32  `toml:"max_conns"`
}

// Reader exposes stored data to the query API.
type Reader interface {
	// ListSnapshots returns the last known snapshot of every interface of a
	// device, sorted by interface name.
	ListSnapshots(ctx context.Context, device string) ([]engine.Snapshot, error)
	// RecentEvents returns up to limit transitions, newest first.
	RecentEvents(ctx context.Context, limit int) ([]engine.Transition, error)
}

// Store is a complete storage backend.
type Store interface {
	engine.SnapshotStore
	Reader
	Close()
}

// ClampLimit bounds an event query limit to [1, MaxEventLimit], mapping
// non-positive values to DefaultEventLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	if limit > MaxEventLimit {
		return MaxEventLimit
	}
	return limit
}

// Open creates the backend named by cfg.Driver. An empty driver selects the
// in-memory store.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		log.Info().Int("event_retention", retention(cfg.EventRetention)).Msg("Using in-memory store")
		return NewMemory(cfg.EventRetention), nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, ErrMissingDSN
		}
		return NewPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func retention(n int) int {
	if n <= 0 {
		return DefaultEventRetention
	}
	return n
}
