package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/tui/styles"
)

func configCmd(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: nocwatch config <path|init|theme|identity>")
		os.Exit(1)
	}

	switch args[0] {
	case "path":
		configPath()
	case "init":
		configInit()
	case "theme":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: nocwatch config theme NAME")
			os.Exit(1)
		}
		configSetTheme(args[1])
	case "identity":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: nocwatch config identity NAME")
			os.Exit(1)
		}
		configSetIdentity(args[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: nocwatch config <path|init|theme|identity>")
		os.Exit(1)
	}
}

func configPath() {
	path, err := config.GetConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

// starterConfig is written by "config init": the defaults plus one example
// device polled with an inline community.
func starterConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DevicesDir = "devices.d"
	cfg.Devices = []engine.Device{{
		Name:              "core-1",
		Host:              "192.0.2.1",
		Port:              config.DefaultSNMPPort,
		Community:         "public",
		ExpectedSpeedMbps: 1000,
		IgnoredInterfaces: []string{"lo", "Null0"},
		Timeout:           5 * time.Second,
	}}
	return cfg
}

func configInit() {
	path, err := config.GetConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		os.Exit(1)
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	saveConfig(starterConfig())
	fmt.Printf("Wrote %s. Edit the [[devices]] section, then run 'nocwatch run'.\n", path)
}

func configSetTheme(name string) {
	if _, ok := styles.Lookup(name); !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown theme %q\n", name)
		fmt.Fprintln(os.Stderr, "Run 'nocwatch themes' to see available themes.")
		os.Exit(1)
	}

	cfg := readConfigForEdit()
	cfg.Theme = name
	saveConfig(cfg)

	fmt.Printf("Default theme set to %q.\n", name)
}

func configSetIdentity(name string) {
	cfg := readConfigForEdit()
	cfg.DefaultIdentity = name
	saveConfig(cfg)

	fmt.Printf("Default identity set to %q.\n", name)
}

func themesCmd() {
	for _, slug := range styles.Slugs() {
		t, _ := styles.Lookup(slug)
		fmt.Printf("%-24s %s\n", slug, t.Name)
	}
}

// loadOrDefaultConfig loads the config from disk, falling back to defaults.
func loadOrDefaultConfig() *config.Config {
	path, err := config.GetConfigPath()
	if err != nil {
		return config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// readConfigForEdit reads the config file as written, without merged device
// files or environment overrides. A broken file is an error rather than
// being replaced by defaults.
func readConfigForEdit() *config.Config {
	path, err := config.GetConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.ReadConfigFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// saveConfig writes the config to disk, creating directories as needed.
func saveConfig(cfg *config.Config) {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config directories: %v\n", err)
		os.Exit(1)
	}

	path, err := config.GetConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
}
