package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/store"
)

type fakeBoard struct {
	devices []engine.Device
	board   engine.BoardSnapshot

	mu         sync.Mutex
	subs       []chan engine.Transition
	subscribed chan struct{}
	released   chan struct{}
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		devices: []engine.Device{
			{Name: "core-1", Host: "10.0.0.1", Port: 161, Community: "s3cret", Timeout: 3 * time.Second},
			{Name: "edge-1", Host: "10.0.0.2", Port: 161, Identity: "ro"},
		},
		board: engine.BoardSnapshot{
			Interfaces: []engine.InterfaceStatus{
				{Device: "core-1", Iface: "sfp1", State: engine.StateDown, Diagnostics: engine.Diagnostics{Reason: "no carrier"}},
			},
			TickCount: 3,
		},
		subscribed: make(chan struct{}, 1),
		released:   make(chan struct{}, 1),
	}
}

func (f *fakeBoard) Devices() []engine.Device { return f.devices }
func (f *fakeBoard) Snapshot() engine.BoardSnapshot { return f.board }

func (f *fakeBoard) Subscribe() <-chan engine.Transition {
	ch := make(chan engine.Transition, 4)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	f.subscribed <- struct{}{}
	return ch
}

func (f *fakeBoard) Unsubscribe(<-chan engine.Transition) {
	f.released <- struct{}{}
}

func (f *fakeBoard) send(t engine.Transition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- t
	}
}

func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory(10)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "core-1", "sfp1", engine.Snapshot{Name: "sfp1", Timestamp: 100}))
	require.NoError(t, m.Save(ctx, "core-1", "ether1", engine.Snapshot{Name: "ether1", Timestamp: 100, CarrierUp: true}))
	for i := 1; i <= 3; i++ {
		require.NoError(t, m.AppendEvent(ctx, engine.Transition{
			ID: string(rune('a' + i)), Device: "core-1", Iface: "sfp1", To: engine.StateDown, Timestamp: int64(i),
		}))
	}
	return m
}

func newTestServer(t *testing.T, cfg Config, reader store.Reader) (*fakeBoard, *httptest.Server) {
	t.Helper()
	board := newFakeBoard()
	srv := New(cfg, board, reader, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return board, ts
}

func getJSON(t *testing.T, url string, header http.Header, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{APIKey: "k"}, seededStore(t))

	var out map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/health", nil, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestDevicesHideCredentials(t *testing.T) {
	_, ts := newTestServer(t, Config{}, seededStore(t))

	var out struct {
		Devices []map[string]any `json:"devices"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/devices", nil, &out))
	require.Len(t, out.Devices, 2)
	assert.Equal(t, "core-1", out.Devices[0]["name"])
	assert.Equal(t, "3s", out.Devices[0]["timeout"])
	assert.NotContains(t, out.Devices[0], "community")
	assert.Equal(t, "ro", out.Devices[1]["identity"])
}

func TestDeviceIfaces(t *testing.T) {
	_, ts := newTestServer(t, Config{}, seededStore(t))

	var out struct {
		Device     string            `json:"device"`
		Interfaces []engine.Snapshot `json:"interfaces"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/devices/core-1/ifaces", nil, &out))
	require.Len(t, out.Interfaces, 2)
	assert.Equal(t, "ether1", out.Interfaces[0].Name)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/devices/nope/ifaces", nil, nil))

	out.Interfaces = nil
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/devices/edge-1/ifaces", nil, &out))
	assert.NotNil(t, out.Interfaces)
	assert.Empty(t, out.Interfaces)
}

func TestEventsLimit(t *testing.T) {
	_, ts := newTestServer(t, Config{}, seededStore(t))

	var out struct {
		Events []engine.Transition `json:"events"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events?limit=2", nil, &out))
	require.Len(t, out.Events, 2)
	assert.Equal(t, int64(3), out.Events[0].Timestamp, "newest first")

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events", nil, &out))
	assert.Len(t, out.Events, 3)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/events?limit=abc", nil, nil))
}

type failingReader struct{}

func (failingReader) ListSnapshots(context.Context, string) ([]engine.Snapshot, error) {
	return nil, errors.New("db down")
}

func (failingReader) RecentEvents(context.Context, int) ([]engine.Transition, error) {
	return nil, errors.New("db down")
}

func TestStorageFailure(t *testing.T) {
	_, ts := newTestServer(t, Config{}, failingReader{})

	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/v1/events", nil, nil))
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, ts.URL+"/api/v1/devices/core-1/ifaces", nil, nil))
}

func TestAPIKey(t *testing.T) {
	_, ts := newTestServer(t, Config{APIKey: "letmein"}, seededStore(t))

	assert.Equal(t, http.StatusUnauthorized, getJSON(t, ts.URL+"/api/v1/interfaces", nil, nil))
	assert.Equal(t, http.StatusUnauthorized,
		getJSON(t, ts.URL+"/api/v1/interfaces", http.Header{APIKeyHeader: {"wrong"}}, nil))

	var board engine.BoardSnapshot
	require.Equal(t, http.StatusOK,
		getJSON(t, ts.URL+"/api/v1/interfaces", http.Header{APIKeyHeader: {"letmein"}}, &board))
	assert.Equal(t, 3, board.TickCount)
	require.Len(t, board.Interfaces, 1)
	assert.Equal(t, engine.StateDown, board.Interfaces[0].State)
}

func TestRateLimit(t *testing.T) {
	_, ts := newTestServer(t, Config{RateLimit: 0.001, Burst: 2}, seededStore(t))

	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/interfaces", nil, nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/interfaces", nil, nil))
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, ts.URL+"/api/v1/interfaces", nil, nil))

	// Health stays reachable for probes.
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/health", nil, nil))
}

func TestServeAndShutdown(t *testing.T) {
	srv := New(Config{Listen: "127.0.0.1:0"}, newFakeBoard(), seededStore(t), zerolog.Nop())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client, err := NewClient(srv.Addr().String(), "", time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Health(context.Background()))

	cancel()
	require.NoError(t, <-done)
}
