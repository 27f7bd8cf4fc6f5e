package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tonhe/nocwatch/internal/api"
	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/internal/device"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/logger"
	"github.com/tonhe/nocwatch/internal/metrics"
	"github.com/tonhe/nocwatch/internal/notify"
	"github.com/tonhe/nocwatch/internal/store"
	"github.com/tonhe/nocwatch/internal/vault"
)

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file (default ~/.config/nocwatch/config.toml)")
	once := fs.Bool("once", false, "Run a single collection cycle and exit")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfigFrom(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initialising logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runCollector(ctx, cfg, *once); err != nil {
		logger.Error().Err(err).Msg("nocwatch exited with error")
		os.Exit(1)
	}
}

// loadConfigFrom loads path, or the default config file when path is empty.
func loadConfigFrom(path string) (*config.Config, error) {
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadConfig(path)
}

// needsVault reports whether any device resolves its credential by identity.
func needsVault(devices []engine.Device) bool {
	for _, d := range devices {
		if d.Identity != "" {
			return true
		}
	}
	return false
}

// runCollector wires every component and blocks until ctx is cancelled or a
// server fails.
func runCollector(ctx context.Context, cfg *config.Config, once bool) error {
	log := logger.WithComponent("main")

	var creds vault.Provider
	if needsVault(cfg.Devices) {
		path, err := config.VaultPathFor(cfg)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("devices reference identities but the vault is unavailable: %w", err)
		}
		fs, err := openVault(path)
		if err != nil {
			return err
		}
		creds = fs
	}

	st, err := store.Open(ctx, cfg.Storage, logger.WithComponent("store"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	notifier, err := notify.New(cfg.Alerting, logger.WithComponent("notify"))
	if err != nil {
		return fmt.Errorf("configure alerting: %w", err)
	}
	defer notifier.Close()

	sink := metrics.NewSink()

	client := device.New(creds,
		device.WithLogger(logger.WithComponent("device")),
		device.WithTimeout(cfg.PollTimeout))

	collector, err := engine.NewCollector(cfg.Devices, cfg.Settings(), client, st, notifier, sink,
		engine.WithLogger(logger.WithComponent("collector")))
	if err != nil {
		return err
	}

	if once {
		summary := collector.Tick(ctx)
		log.Info().
			Int("devices", summary.Devices).
			Strs("failed", summary.Failed).
			Int("interfaces", summary.Interfaces).
			Int("transitions", summary.Transitions).
			Dur("took", summary.Duration).
			Msg("Collection cycle complete")
		if len(summary.Failed) == summary.Devices {
			return errors.New("every device poll failed")
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv, err := metrics.Listen(cfg.Metrics, sink, logger.WithComponent("metrics"))
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(ctx) })
	}

	if cfg.API.Enabled {
		srv := api.New(cfg.API, collector, st, logger.WithComponent("api"))
		if err := srv.Listen(); err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(ctx) })
	}

	g.Go(func() error { return collector.Run(ctx) })

	err = g.Wait()
	log.Info().Msg("Shutdown complete")
	return err
}
