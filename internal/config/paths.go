package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "nocwatch"

// GetConfigDir returns the platform-specific config directory.
// Unix: $XDG_CONFIG_HOME/nocwatch or ~/.config/nocwatch
// Windows: %APPDATA%\nocwatch
func GetConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appName), nil
}

// GetConfigPath returns the default config file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// GetDevicesDir returns the directory for split device inventory files.
func GetDevicesDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "devices.d"), nil
}

// GetVaultPath returns the path to the encrypted credential vault.
func GetVaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vault.enc"), nil
}

// VaultPathFor resolves the vault location for cfg, falling back to the
// default path.
func VaultPathFor(cfg *Config) (string, error) {
	if cfg != nil && cfg.VaultPath != "" {
		return cfg.VaultPath, nil
	}
	return GetVaultPath()
}

// EnsureDirs creates all required directories if they don't exist.
func EnsureDirs() error {
	dirs := []func() (string, error){GetConfigDir, GetDevicesDir}
	for _, fn := range dirs {
		dir, err := fn()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
