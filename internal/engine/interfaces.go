//go:generate mockgen -destination=mock_engine.go -package=engine github.com/tonhe/nocwatch/internal/engine DeviceClient,SnapshotStore,Notifier,MetricsSink

package engine

import (
	"context"
	"time"
)

// DeviceClient fetches the current interface snapshots of one device, keyed
// by interface name.
type DeviceClient interface {
	Poll(ctx context.Context, dev Device) (map[string]Snapshot, error)
}

// SnapshotStore keeps the last known snapshot of every interface and an
// append-only log of transitions.
type SnapshotStore interface {
	// GetLast returns nil and no error for an interface never seen before.
	GetLast(ctx context.Context, device, iface string) (*Snapshot, error)
	Save(ctx context.Context, device, iface string, snap Snapshot) error
	AppendEvent(ctx context.Context, t Transition) error
}

// Notifier delivers transition alerts. Implementations bound their own
// latency and report failures through logging only.
type Notifier interface {
	Notify(ctx context.Context, t Transition)
}

// MetricsSink receives the latest figures for export.
type MetricsSink interface {
	ObserveInterface(device, iface string, state State, rates Rates)
	ObservePoll(device string, took time.Duration, err error)
	ObserveTransition(t Transition)
	ObserveTick(took time.Duration)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Transition) {}

type nopMetrics struct{}

func (nopMetrics) ObserveInterface(string, string, State, Rates) {}
func (nopMetrics) ObservePoll(string, time.Duration, error)      {}
func (nopMetrics) ObserveTransition(Transition)                  {}
func (nopMetrics) ObserveTick(time.Duration)                     {}
