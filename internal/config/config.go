package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonhe/nocwatch/internal/api"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/logger"
	"github.com/tonhe/nocwatch/internal/metrics"
	"github.com/tonhe/nocwatch/internal/notify"
	"github.com/tonhe/nocwatch/internal/store"
)

// Environment overrides applied after the file is read.
const (
	EnvAPIKey = "NOCWATCH_API_KEY"
	EnvPGDSN  = "NOCWATCH_PG_DSN"

	DefaultSNMPPort = 161
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	PollIntervalStr string        `toml:"poll_interval"`
	PollInterval    time.Duration `toml:"-"`
	PollTimeoutStr  string        `toml:"poll_timeout"`
	PollTimeout     time.Duration `toml:"-"`
	Workers         int           `toml:"workers"`
	Theme           string        `toml:"theme"`
	DefaultIdentity string        `toml:"default_identity"`
	VaultPath       string        `toml:"vault_path"`
	DevicesDir      string        `toml:"devices_dir"`

	Thresholds engine.Thresholds `toml:"thresholds"`
	Logging    logger.Config     `toml:"logging"`
	Metrics    metrics.Config    `toml:"metrics"`
	API        api.Config        `toml:"api"`
	Storage    store.Config      `toml:"storage"`
	Alerting   notify.Config     `toml:"alerting"`
	Devices    []engine.Device   `toml:"devices"`
}

func DefaultConfig() *Config {
	return &Config{
		PollIntervalStr: "15s",
		PollInterval:    15 * time.Second,
		PollTimeoutStr:  "10s",
		PollTimeout:     10 * time.Second,
		Workers:         16,
		Theme:           "solarized-dark",
		Thresholds:      engine.DefaultThresholds(),
		Logging:         logger.DefaultConfig(),
		Metrics:         metrics.DefaultConfig(),
		API:             api.DefaultConfig(),
		Storage: store.Config{
			Driver:         store.DriverMemory,
			EventRetention: store.DefaultEventRetention,
		},
		Alerting: notify.Config{
			Provider:   notify.ProviderConsole,
			TimeoutStr: notify.DefaultTimeout.String(),
			Timeout:    notify.DefaultTimeout,
		},
	}
}

// ReadConfigFile decodes path over the defaults and parses its duration
// strings. Nothing else is applied, so the result can be edited and written
// back with SaveConfig. A missing file yields the defaults.
func ReadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads path for running. Device files under devices_dir are
// merged in, device defaults and environment overrides applied; the result
// is not validated.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.DevicesDir != "" {
		dir := cfg.DevicesDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		extra, err := LoadDeviceDir(dir)
		if err != nil {
			return nil, err
		}
		cfg.Devices = append(cfg.Devices, extra...)
		if err := cfg.parseDurations(); err != nil {
			return nil, err
		}
	}

	cfg.applyDeviceDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) parseDurations() error {
	parse := func(field, s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalid, field, s, err)
		}
		*dst = d
		return nil
	}

	if err := parse("poll_interval", c.PollIntervalStr, &c.PollInterval); err != nil {
		return err
	}
	if err := parse("poll_timeout", c.PollTimeoutStr, &c.PollTimeout); err != nil {
		return err
	}
	if err := parse("alerting.timeout", c.Alerting.TimeoutStr, &c.Alerting.Timeout); err != nil {
		return err
	}
	for i := range c.Devices {
		d := &c.Devices[i]
		if err := parse("devices."+d.Name+".timeout", d.TimeoutStr, &d.Timeout); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyDeviceDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Port == 0 {
			d.Port = DefaultSNMPPort
		}
		if d.Identity == "" && d.Community == "" {
			d.Identity = c.DefaultIdentity
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv(EnvPGDSN); v != "" {
		c.Storage.DSN = v
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.PollInterval <= 0 {
		fail("poll_interval must be positive")
	}
	if c.PollTimeout <= 0 {
		fail("poll_timeout must be positive")
	}
	if c.Workers < 0 {
		fail("workers must not be negative")
	}

	if c.Thresholds.ErrPerSec <= 0 {
		fail("thresholds.err_per_sec must be positive")
	}
	if c.Thresholds.FlapsWindow <= 0 {
		fail("thresholds.flaps_window must be positive")
	}
	if c.Thresholds.FlapsCount <= 0 {
		fail("thresholds.flaps_count must be positive")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", store.DriverMemory:
	case store.DriverPostgres:
		if c.Storage.DSN == "" {
			fail("storage.dsn is required for the postgres driver (or set %s)", EnvPGDSN)
		}
	default:
		fail("storage.driver %q is not one of memory, postgres", c.Storage.Driver)
	}

	if p := strings.ToLower(strings.TrimSpace(c.Alerting.Provider)); p != "" && !slices.Contains(notify.Providers, p) {
		fail("alerting.provider %q is not one of %s", c.Alerting.Provider, strings.Join(notify.Providers, ", "))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		fail("metrics.port %d out of range", c.Metrics.Port)
	}

	if len(c.Devices) == 0 {
		fail("no devices configured")
	}
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.Name == "":
			fail("devices[%d] has no name", i)
		case seen[d.Name]:
			fail("duplicate device name %q", d.Name)
		}
		seen[d.Name] = true
		if d.Host == "" {
			fail("device %q has no host", d.Name)
		}
		if d.Port < 1 || d.Port > 65535 {
			fail("device %q port %d out of range", d.Name, d.Port)
		}
		if d.ExpectedSpeedMbps < 0 {
			fail("device %q expected_speed_mbps must not be negative", d.Name)
		}
	}

	return errors.Join(errs...)
}

// Settings returns the collector settings the config describes.
func (c *Config) Settings() engine.Settings {
	return engine.Settings{
		Interval:    c.PollInterval,
		PollTimeout: c.PollTimeout,
		Workers:     c.Workers,
		Thresholds:  c.Thresholds,
	}
}

// SaveConfig writes cfg to path. Duration fields are serialised from their
// parsed values.
func SaveConfig(cfg *Config, path string) error {
	cfg.PollIntervalStr = cfg.PollInterval.String()
	cfg.PollTimeoutStr = cfg.PollTimeout.String()
	if cfg.Alerting.Timeout > 0 {
		cfg.Alerting.TimeoutStr = cfg.Alerting.Timeout.String()
	}
	for i := range cfg.Devices {
		if cfg.Devices[i].Timeout > 0 {
			cfg.Devices[i].TimeoutStr = cfg.Devices[i].Timeout.String()
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
