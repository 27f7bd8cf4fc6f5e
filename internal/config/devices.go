package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tonhe/nocwatch/internal/engine"
)

// DeviceFile is one inventory file in the devices directory. Files let a
// large inventory be split by site or team.
type DeviceFile struct {
	DefaultIdentity string          `toml:"default_identity"`
	Devices         []engine.Device `toml:"devices"`
}

// LoadDeviceFile reads one inventory file. Devices without credentials
// inherit the file's default_identity.
func LoadDeviceFile(path string) ([]engine.Device, error) {
	var f DeviceFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("read device file %s: %w", path, err)
	}
	for i := range f.Devices {
		if f.Devices[i].Identity == "" && f.Devices[i].Community == "" {
			f.Devices[i].Identity = f.DefaultIdentity
		}
	}
	return f.Devices, nil
}

// SaveDeviceFile writes devices to path.
func SaveDeviceFile(path string, f DeviceFile) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()
	return toml.NewEncoder(out).Encode(f)
}

// ListDeviceFiles returns the .toml files in dir, sorted.
func ListDeviceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".toml") {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadDeviceDir reads every inventory file in dir in name order. A missing
// directory contributes no devices.
func LoadDeviceDir(dir string) ([]engine.Device, error) {
	files, err := ListDeviceFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list device files: %w", err)
	}
	var all []engine.Device
	for _, path := range files {
		devs, err := LoadDeviceFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, devs...)
	}
	return all, nil
}
