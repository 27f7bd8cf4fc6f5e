package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// State is the health classification of a single interface.
type State string

const (
	StateUp        State = "UP"
	StateDown      State = "DOWN"
	StateDegraded  State = "DEGRADED"
	StateAdminDown State = "ADMIN_DOWN"
)

// States lists every classification in a stable order.
var States = []State{StateUp, StateDown, StateDegraded, StateAdminDown}

// Thresholds tunes the classifier.
type Thresholds struct {
	ErrPerSec   float64 `toml:"err_per_sec" json:"err_per_sec"`
	FlapsWindow int64   `toml:"flaps_window" json:"flaps_window"` // seconds
	FlapsCount  int     `toml:"flaps_count" json:"flaps_count"`
}

// DefaultThresholds returns the stock classifier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrPerSec:   1.0,
		FlapsWindow: 300,
		FlapsCount:  3,
	}
}

// LinkSpeed is the link speed as the device reported it: either a bare Mbps
// figure or a rate string such as "2.5Gbps".
type LinkSpeed struct {
	Value int
	Raw   string
}

// Mbps resolves the speed in megabits per second, 0 when unknown.
func (s LinkSpeed) Mbps() int {
	if s.Raw != "" {
		return ParseSpeedMbps(s.Raw)
	}
	return s.Value
}

func (s LinkSpeed) MarshalJSON() ([]byte, error) {
	if s.Raw != "" {
		return json.Marshal(s.Raw)
	}
	return json.Marshal(s.Value)
}

func (s *LinkSpeed) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = LinkSpeed{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = LinkSpeed{Raw: raw}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("link speed: %w", err)
	}
	*s = LinkSpeed{Value: int(v)}
	return nil
}

// Snapshot is one observation of one interface at one instant.
type Snapshot struct {
	Timestamp         int64      `json:"ts"`
	Name              string     `json:"name"`
	AdminDisabled     bool       `json:"disabled"`
	CarrierUp         bool       `json:"carrier"`
	RxBytes           uint64     `json:"rx_bytes"`
	TxBytes           uint64     `json:"tx_bytes"`
	RxErrors          uint64     `json:"rx_errors"`
	TxErrors          uint64     `json:"tx_errors"`
	RxDrops           uint64     `json:"rx_drops"`
	TxDrops           uint64     `json:"tx_drops"`
	LinkDowns         uint64     `json:"link_downs"`
	BytesWrap         uint64     `json:"bytes_wrap,omitempty"`
	ErrorsWrap        uint64     `json:"errors_wrap,omitempty"`
	Speed             LinkSpeed  `json:"speed_mbps"`
	ExpectedSpeedMbps int        `json:"expected_speed_mbps,omitempty"`
	DownsWindow       FlapWindow `json:"downs_ts"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	s.DownsWindow = s.DownsWindow.clone()
	return s
}

// Diagnostics explains a classification.
type Diagnostics struct {
	Reason  string   `json:"reason"`
	ErrRate *float64 `json:"err_rate,omitempty"`
}

func (d Diagnostics) String() string {
	if d.ErrRate == nil {
		return d.Reason
	}
	return fmt.Sprintf("%s (err_rate=%.2f/s)", d.Reason, *d.ErrRate)
}

// Key identifies one interface on one device.
type Key struct {
	Device string `json:"device"`
	Iface  string `json:"iface"`
}

func (k Key) String() string {
	return k.Device + "/" + k.Iface
}

// Transition records a novel change in classified state.
type Transition struct {
	ID          string      `json:"id"`
	Device      string      `json:"device"`
	Iface       string      `json:"iface"`
	From        *State      `json:"from,omitempty"`
	To          State       `json:"to"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Timestamp   int64       `json:"ts"`
}

// Initial reports whether the transition is the first sighting of the
// interface.
func (t Transition) Initial() bool {
	return t.From == nil
}

// Description renders the transition in event-log form.
func (t Transition) Description() string {
	if t.From == nil {
		return fmt.Sprintf("initial_state %s : %s", t.To, t.Diagnostics)
	}
	return fmt.Sprintf("state_change %s -> %s : %s", *t.From, t.To, t.Diagnostics)
}

// Rates holds derived per-second figures for an interface. Valid is false on
// the first observation, when no prior sample exists.
type Rates struct {
	RxBps     float64 `json:"rx_bps"`
	TxBps     float64 `json:"tx_bps"`
	ErrPerSec float64 `json:"err_per_sec"`
	Valid     bool    `json:"valid"`
}

// InterfaceStatus is the latest evaluated view of an interface.
type InterfaceStatus struct {
	Device      string      `json:"device"`
	Iface       string      `json:"iface"`
	State       State       `json:"state"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Rates       Rates       `json:"rates"`
	SpeedMbps   int         `json:"speed_mbps"`
	LastPoll    time.Time   `json:"last_poll"`
}

// BoardSnapshot is a point-in-time view of every interface the collector has
// evaluated.
type BoardSnapshot struct {
	Interfaces []InterfaceStatus `json:"interfaces"`
	LastTick   time.Time         `json:"last_tick"`
	TickCount  int               `json:"tick_count"`
	ErrorCount int               `json:"error_count"`
}

// TickSummary reports what one collection cycle did.
type TickSummary struct {
	Devices     int
	Failed      []string
	Interfaces  int
	Skipped     int
	Transitions int
	Duration    time.Duration
}
