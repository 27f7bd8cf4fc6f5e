package engine

import "time"

// Device is a network device the collector polls.
type Device struct {
	Name              string        `toml:"name" json:"name"`
	Host              string        `toml:"host" json:"host"`
	Port              int           `toml:"port" json:"port"`
	Identity          string        `toml:"identity" json:"identity,omitempty"`
	Community         string        `toml:"community" json:"-"`
	ExpectedSpeedMbps int           `toml:"expected_speed_mbps" json:"expected_speed_mbps,omitempty"`
	IgnoredInterfaces []string      `toml:"ignored_interfaces" json:"ignored_interfaces,omitempty"`
	TimeoutStr        string        `toml:"timeout" json:"-"`
	Timeout           time.Duration `toml:"-" json:"timeout,omitempty"`
}

// Ignores reports whether the named interface is excluded from polling.
func (d Device) Ignores(iface string) bool {
	for _, name := range d.IgnoredInterfaces {
		if name == iface {
			return true
		}
	}
	return false
}
