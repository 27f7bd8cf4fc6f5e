package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type clientFunc func(ctx context.Context, dev Device) (map[string]Snapshot, error)

func (f clientFunc) Poll(ctx context.Context, dev Device) (map[string]Snapshot, error) {
	return f(ctx, dev)
}

type fakeStore struct {
	mu     sync.Mutex
	last   map[Key]Snapshot
	events []Transition
}

func newFakeStore() *fakeStore {
	return &fakeStore{last: make(map[Key]Snapshot)}
}

func (s *fakeStore) GetLast(_ context.Context, device, iface string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.last[Key{Device: device, Iface: iface}]
	if !ok {
		return nil, nil
	}
	c := snap.Clone()
	return &c, nil
}

func (s *fakeStore) Save(_ context.Context, device, iface string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[Key{Device: device, Iface: iface}] = snap.Clone()
	return nil
}

func (s *fakeStore) AppendEvent(_ context.Context, t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, t)
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Transition
}

func (n *recordingNotifier) Notify(_ context.Context, t Transition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, t)
}

// scripted returns a client that serves the snapshots set on it for each
// device, or the configured error.
type scripted struct {
	mu   sync.Mutex
	data map[string]map[string]Snapshot
	errs map[string]error
}

func newScripted() *scripted {
	return &scripted{data: make(map[string]map[string]Snapshot), errs: make(map[string]error)}
}

func (s *scripted) set(device string, snaps ...Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]Snapshot, len(snaps))
	for _, snap := range snaps {
		m[snap.Name] = snap
	}
	s.data[device] = m
}

func (s *scripted) Poll(_ context.Context, dev Device) (map[string]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[dev.Name]; err != nil {
		return nil, err
	}
	return s.data[dev.Name], nil
}

func testSettings() Settings {
	return Settings{Interval: time.Second, PollTimeout: time.Second, Workers: 4}
}

func TestNewCollectorValidation(t *testing.T) {
	devices := []Device{{Name: "r1"}}
	client := newScripted()
	store := newFakeStore()

	_, err := NewCollector(nil, testSettings(), client, store, nil, nil)
	require.ErrorIs(t, err, ErrNoDevices)

	_, err = NewCollector(devices, testSettings(), nil, store, nil, nil)
	require.ErrorIs(t, err, ErrNoClient)

	_, err = NewCollector(devices, testSettings(), client, nil, nil, nil)
	require.ErrorIs(t, err, ErrNoStore)

	c, err := NewCollector(devices, Settings{}, client, store, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultInterval, c.settings.Interval)
	assert.Equal(t, defaultPollTimeout, c.settings.PollTimeout)
	assert.Equal(t, DefaultThresholds(), c.settings.Thresholds)
	assert.Equal(t, 1, c.poolSize())
}

func TestTickIsolatesFailedDevice(t *testing.T) {
	client := newScripted()
	client.errs["bad"] = &ConnectionError{Device: "bad", Err: errors.New("connection refused")}
	client.set("good",
		Snapshot{Timestamp: 1000, Name: "ether1"},
		Snapshot{Timestamp: 1000, Name: "ether2", CarrierUp: true},
	)
	store := newFakeStore()
	notifier := &recordingNotifier{}

	c, err := NewCollector([]Device{{Name: "bad"}, {Name: "good"}}, testSettings(), client, store, notifier, nil)
	require.NoError(t, err)

	summary := c.Tick(context.Background())

	assert.Equal(t, []string{"bad"}, summary.Failed)
	assert.Equal(t, 2, summary.Interfaces)
	assert.Equal(t, 1, summary.Transitions)

	assert.Len(t, store.last, 2)
	require.Len(t, store.events, 1)
	assert.Equal(t, "good", store.events[0].Device)
	assert.Equal(t, "ether1", store.events[0].Iface)
	assert.Equal(t, StateDown, store.events[0].To)
	assert.Nil(t, store.events[0].From)
	assert.NotEmpty(t, store.events[0].ID)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, store.events[0], notifier.sent[0])

	board := c.Snapshot()
	assert.Equal(t, 1, board.ErrorCount)
	assert.Equal(t, 1, board.TickCount)
	require.Len(t, board.Interfaces, 2)
	assert.Equal(t, "ether1", board.Interfaces[0].Iface)
	assert.Equal(t, "ether2", board.Interfaces[1].Iface)
}

func TestTickEmitsOnlyOnChange(t *testing.T) {
	client := newScripted()
	store := newFakeStore()
	notifier := &recordingNotifier{}

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, notifier, nil)
	require.NoError(t, err)
	ctx := context.Background()

	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true})
	assert.Zero(t, c.Tick(ctx).Transitions, "a new UP interface is not news")

	client.set("r1", Snapshot{Timestamp: 1015, Name: "ether1", CarrierUp: true})
	assert.Zero(t, c.Tick(ctx).Transitions)

	client.set("r1", Snapshot{Timestamp: 1030, Name: "ether1"})
	assert.Equal(t, 1, c.Tick(ctx).Transitions)

	client.set("r1", Snapshot{Timestamp: 1045, Name: "ether1"})
	assert.Zero(t, c.Tick(ctx).Transitions)

	client.set("r1", Snapshot{Timestamp: 1060, Name: "ether1", CarrierUp: true})
	assert.Equal(t, 1, c.Tick(ctx).Transitions)

	require.Len(t, store.events, 2)
	assert.Equal(t, "state_change UP -> DOWN : no carrier", store.events[0].Description())
	assert.Equal(t, StateUp, store.events[1].To)
	assert.Len(t, notifier.sent, 2)
}

func TestTickAppliesDeviceExpectedSpeed(t *testing.T) {
	client := newScripted()
	client.set("r1", Snapshot{Timestamp: 1000, Name: "sfp1", CarrierUp: true, Speed: LinkSpeed{Raw: "1Gbps"}})
	store := newFakeStore()

	c, err := NewCollector([]Device{{Name: "r1", ExpectedSpeedMbps: 10000}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)

	c.Tick(context.Background())

	require.Len(t, store.events, 1)
	assert.Equal(t, StateDegraded, store.events[0].To)
	assert.Equal(t, "speed_mismatch 1000 != expected 10000", store.events[0].Diagnostics.Reason)
	assert.Equal(t, 10000, store.last[Key{Device: "r1", Iface: "sfp1"}].ExpectedSpeedMbps)
}

func TestTickPersistsFlapWindow(t *testing.T) {
	client := newScripted()
	store := newFakeStore()

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := int64(0); i <= 3; i++ {
		client.set("r1", Snapshot{Timestamp: 1000 + i*10, Name: "ether1", CarrierUp: true, LinkDowns: uint64(i)})
		c.Tick(ctx)
	}

	saved := store.last[Key{Device: "r1", Iface: "ether1"}]
	assert.Equal(t, FlapWindow{1010, 1020, 1030}, saved.DownsWindow)
	require.Len(t, store.events, 1)
	assert.Equal(t, "flapping", store.events[0].Diagnostics.Reason)
}

func TestTickEventFailureSuppressesSideEffects(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockSnapshotStore(ctrl)
	notifier := NewMockNotifier(ctrl)
	metrics := NewMockMetricsSink(ctrl)
	client := NewMockDeviceClient(ctrl)

	client.EXPECT().Poll(gomock.Any(), Device{Name: "r1"}).
		Return(map[string]Snapshot{"ether1": {Timestamp: 1000, Name: "ether1"}}, nil)
	store.EXPECT().GetLast(gomock.Any(), "r1", "ether1").Return(nil, nil)
	store.EXPECT().AppendEvent(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	metrics.EXPECT().ObservePoll("r1", gomock.Any(), nil)
	metrics.EXPECT().ObserveInterface("r1", "ether1", StateDown, Rates{})
	metrics.EXPECT().ObserveTick(gomock.Any())

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, notifier, metrics)
	require.NoError(t, err)

	summary := c.Tick(context.Background())

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Transitions)
	assert.Empty(t, c.Snapshot().Interfaces)
}

// saveFailStore fails the next failures calls to Save.
type saveFailStore struct {
	*fakeStore
	failures int
}

func (s *saveFailStore) Save(ctx context.Context, device, iface string, snap Snapshot) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	return s.fakeStore.Save(ctx, device, iface, snap)
}

func TestTickSaveFailureDoesNotRepeatTransition(t *testing.T) {
	client := newScripted()
	store := &saveFailStore{fakeStore: newFakeStore()}
	notifier := &recordingNotifier{}

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, notifier, nil)
	require.NoError(t, err)
	ctx := context.Background()

	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true})
	c.Tick(ctx)

	store.failures = 1
	client.set("r1", Snapshot{Timestamp: 1010, Name: "ether1"})
	summary := c.Tick(ctx)
	assert.Equal(t, 1, summary.Transitions)
	assert.Equal(t, 1, summary.Skipped)

	client.set("r1", Snapshot{Timestamp: 1020, Name: "ether1"})
	summary = c.Tick(ctx)
	assert.Zero(t, summary.Transitions)
	assert.Equal(t, int64(1020), store.last[Key{Device: "r1", Iface: "ether1"}].Timestamp)

	client.set("r1", Snapshot{Timestamp: 1030, Name: "ether1", CarrierUp: true})
	c.Tick(ctx)

	require.Len(t, store.events, 2)
	assert.Equal(t, "state_change UP -> DOWN : no carrier", store.events[0].Description())
	assert.Equal(t, StateUp, store.events[1].To)
	require.NotNil(t, store.events[1].From)
	assert.Equal(t, StateDown, *store.events[1].From)
	assert.Len(t, notifier.sent, 2)
}

func TestTickSaveFailureStillReportsRecovery(t *testing.T) {
	client := newScripted()
	store := &saveFailStore{fakeStore: newFakeStore()}

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true})
	c.Tick(ctx)

	store.failures = 2
	client.set("r1", Snapshot{Timestamp: 1010, Name: "ether1"})
	c.Tick(ctx)
	client.set("r1", Snapshot{Timestamp: 1020, Name: "ether1", CarrierUp: true})
	c.Tick(ctx)
	client.set("r1", Snapshot{Timestamp: 1030, Name: "ether1", CarrierUp: true})
	c.Tick(ctx)

	require.Len(t, store.events, 2)
	assert.Equal(t, StateDown, store.events[0].To)
	assert.Equal(t, StateUp, store.events[1].To)
	assert.Empty(t, c.unsaved)
}

func TestTickSaveFailureOnFirstSighting(t *testing.T) {
	client := newScripted()
	store := &saveFailStore{fakeStore: newFakeStore(), failures: 1}

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", AdminDisabled: true})
	c.Tick(ctx)
	client.set("r1", Snapshot{Timestamp: 1010, Name: "ether1", AdminDisabled: true})
	c.Tick(ctx)

	require.Len(t, store.events, 1)
	assert.True(t, store.events[0].Initial())
}

func TestNextWait(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		took     time.Duration
		want     time.Duration
	}{
		{name: "fast tick", interval: 15 * time.Second, took: 5 * time.Second, want: 10 * time.Second},
		{name: "tick took the whole interval", interval: 15 * time.Second, took: 15 * time.Second, want: time.Second},
		{name: "slow tick", interval: 15 * time.Second, took: 40 * time.Second, want: time.Second},
		{name: "remainder under a second", interval: 15 * time.Second, took: 14500 * time.Millisecond, want: time.Second},
		{name: "no time taken", interval: 30 * time.Second, want: 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextWait(tt.interval, tt.took))
		})
	}
}

func TestTickStoreReadFailureSkipsInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockSnapshotStore(ctrl)

	store.EXPECT().GetLast(gomock.Any(), "r1", "ether1").Return(nil, errors.New("connection reset"))
	store.EXPECT().GetLast(gomock.Any(), "r1", "ether2").Return(nil, nil)
	store.EXPECT().Save(gomock.Any(), "r1", "ether2", gomock.Any()).Return(nil)

	client := newScripted()
	client.set("r1",
		Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true},
		Snapshot{Timestamp: 1000, Name: "ether2", CarrierUp: true},
	)

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)

	summary := c.Tick(context.Background())
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Interfaces)
}

func TestTickRecoversInterfacePanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockSnapshotStore(ctrl)
	store.EXPECT().GetLast(gomock.Any(), "r1", "ether1").DoAndReturn(
		func(context.Context, string, string) (*Snapshot, error) { panic("corrupt row") })

	client := newScripted()
	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true})

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, store, nil, nil)
	require.NoError(t, err)

	var evalErr *ClassificationError
	_, err = c.processInterface(context.Background(), Device{Name: "r1"}, "ether1", Snapshot{Name: "ether1"})
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, Key{Device: "r1", Iface: "ether1"}, evalErr.Key)
}

func TestPollTimeoutFailsDevice(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	client := clientFunc(func(_ context.Context, dev Device) (map[string]Snapshot, error) {
		if dev.Name == "slow" {
			<-release
		}
		return map[string]Snapshot{"ether1": {Timestamp: 1000, Name: "ether1", CarrierUp: true}}, nil
	})

	settings := testSettings()
	settings.PollTimeout = 20 * time.Millisecond
	c, err := NewCollector([]Device{{Name: "slow"}, {Name: "fast"}}, settings, client, newFakeStore(), nil, nil)
	require.NoError(t, err)

	summary := c.Tick(context.Background())

	assert.Equal(t, []string{"slow"}, summary.Failed)
	assert.Equal(t, 1, summary.Interfaces)
}

func TestPollPanicFailsDevice(t *testing.T) {
	client := clientFunc(func(context.Context, Device) (map[string]Snapshot, error) {
		panic("nil session")
	})
	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, newFakeStore(), nil, nil)
	require.NoError(t, err)

	res := c.pollDevice(context.Background(), Device{Name: "r1"})
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "nil session")
}

func TestSubscribe(t *testing.T) {
	client := newScripted()
	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", AdminDisabled: true})

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, newFakeStore(), nil, nil)
	require.NoError(t, err)

	sub := c.Subscribe()
	c.Tick(context.Background())

	select {
	case tr := <-sub:
		assert.Equal(t, StateAdminDown, tr.To)
		assert.Equal(t, "initial_state ADMIN_DOWN : admin disabled", tr.Description())
	default:
		t.Fatal("expected a transition on the subscription")
	}

	c.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
}

func TestRunStopsOnCancel(t *testing.T) {
	client := newScripted()
	client.set("r1", Snapshot{Timestamp: 1000, Name: "ether1", CarrierUp: true})

	c, err := NewCollector([]Device{{Name: "r1"}}, testSettings(), client, newFakeStore(), nil, nil)
	require.NoError(t, err)
	sub := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Snapshot().TickCount >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, open := <-sub
	assert.False(t, open)
}
