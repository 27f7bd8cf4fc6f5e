package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tonhe/nocwatch/internal/engine"
)

// Memory is a process-local store. Snapshots live until overwritten; the
// event log keeps only the most recent transitions.
type Memory struct {
	mu     sync.RWMutex
	last   map[engine.Key]engine.Snapshot
	events *RingBuffer[engine.Transition]
}

// NewMemory creates an empty in-memory store keeping up to retention events.
func NewMemory(retentionEvents int) *Memory {
	return &Memory{
		last:   make(map[engine.Key]engine.Snapshot),
		events: NewRingBuffer[engine.Transition](retention(retentionEvents)),
	}
}

func (m *Memory) GetLast(_ context.Context, device, iface string) (*engine.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.last[engine.Key{Device: device, Iface: iface}]
	if !ok {
		return nil, nil
	}
	c := snap.Clone()
	return &c, nil
}

func (m *Memory) Save(_ context.Context, device, iface string, snap engine.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[engine.Key{Device: device, Iface: iface}] = snap.Clone()
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, t engine.Transition) error {
	m.events.Add(t)
	return nil
}

func (m *Memory) ListSnapshots(_ context.Context, device string) ([]engine.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Snapshot
	for k, snap := range m.last {
		if k.Device != device {
			continue
		}
		snap = snap.Clone()
		if snap.Name == "" {
			snap.Name = k.Iface
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) RecentEvents(_ context.Context, limit int) ([]engine.Transition, error) {
	return m.events.Recent(ClampLimit(limit)), nil
}

func (m *Memory) Close() {}
