package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval    = 15 * time.Second
	defaultPollTimeout = 10 * time.Second
	defaultWorkers     = 16
	minSleep           = time.Second
	subscriberBuffer   = 16
)

// Settings tunes the collection cycle.
type Settings struct {
	Interval    time.Duration
	PollTimeout time.Duration
	Workers     int
	Thresholds  Thresholds
}

// Option customises a Collector.
type Option func(*Collector)

// WithLogger sets the collector's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithClock overrides the wall clock used for status timestamps and cycle
// pacing.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector polls every configured device on a fixed cadence, classifies each
// interface and fires side effects once per state transition.
type Collector struct {
	devices  []Device
	settings Settings
	client   DeviceClient
	store    SnapshotStore
	notifier Notifier
	metrics  MetricsSink
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	board       map[Key]InterfaceStatus
	unsaved     map[Key]unsavedState
	subscribers []chan Transition
	tickCount   int
	errorCount  int
	lastTick    time.Time
}

// unsavedState is the classification of an interface whose snapshot could
// not be persisted. While the store still holds the same prior snapshot,
// it stands in for that snapshot's state so a transition is not repeated.
type unsavedState struct {
	hasPrev bool
	prevTS  int64
	state   State
}

func newUnsavedState(prev *Snapshot, state State) unsavedState {
	u := unsavedState{state: state}
	if prev != nil {
		u.hasPrev, u.prevTS = true, prev.Timestamp
	}
	return u
}

func (u unsavedState) follows(prev *Snapshot) bool {
	if prev == nil {
		return !u.hasPrev
	}
	return u.hasPrev && u.prevTS == prev.Timestamp
}

type pollResult struct {
	device    Device
	snapshots map[string]Snapshot
	err       error
}

// NewCollector creates a Collector. notifier and metrics may be nil.
func NewCollector(devices []Device, settings Settings, client DeviceClient, store SnapshotStore,
	notifier Notifier, metrics MetricsSink, opts ...Option) (*Collector, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if client == nil {
		return nil, ErrNoClient
	}
	if store == nil {
		return nil, ErrNoStore
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if settings.Interval <= 0 {
		settings.Interval = defaultInterval
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = defaultPollTimeout
	}
	if settings.Workers <= 0 {
		settings.Workers = defaultWorkers
	}
	settings.Thresholds = settings.Thresholds.WithDefaults()

	c := &Collector{
		devices:  append([]Device(nil), devices...),
		settings: settings,
		client:   client,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   zerolog.Nop(),
		now:      time.Now,
		board:    make(map[Key]InterfaceStatus),
		unsaved:  make(map[Key]unsavedState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Devices returns the devices the collector polls.
func (c *Collector) Devices() []Device {
	return append([]Device(nil), c.devices...)
}

// Run drives collection until ctx is cancelled. Each cycle runs to
// completion before the next starts; the pause between cycles is the poll
// interval minus the time the cycle took, but never less than a second.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info().
		Int("devices", len(c.devices)).
		Dur("interval", c.settings.Interval).
		Int("workers", c.poolSize()).
		Msg("Starting collector")

	defer c.closeSubscribers()

	for {
		start := c.now()
		summary := c.Tick(ctx)

		c.logger.Debug().
			Int("interfaces", summary.Interfaces).
			Int("transitions", summary.Transitions).
			Strs("failed", summary.Failed).
			Dur("took", summary.Duration).
			Msg("Tick complete")

		timer := time.NewTimer(nextWait(c.settings.Interval, c.now().Sub(start)))
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info().Msg("Collector stopped")
			return nil
		case <-timer.C:
		}
	}
}

// nextWait is the pause before the next cycle: what is left of interval
// after took, but at least minSleep.
func nextWait(interval, took time.Duration) time.Duration {
	wait := interval - took
	if wait < minSleep {
		return minSleep
	}
	return wait
}

// Tick runs one collection cycle: all devices are polled concurrently, then
// every interface of every successful poll is evaluated in turn.
func (c *Collector) Tick(ctx context.Context) TickSummary {
	start := time.Now()
	summary := TickSummary{Devices: len(c.devices)}

	for _, res := range c.pollAll(ctx) {
		log := c.logger.With().Str("device", res.device.Name).Logger()

		if res.err != nil {
			log.Error().Err(res.err).Msg("Device poll failed, skipping for this tick")
			summary.Failed = append(summary.Failed, res.device.Name)
			c.mu.Lock()
			c.errorCount++
			c.mu.Unlock()
			continue
		}

		names := make([]string, 0, len(res.snapshots))
		for name := range res.snapshots {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			emitted, err := c.processInterface(ctx, res.device, name, res.snapshots[name])
			if emitted {
				summary.Transitions++
			}
			if err != nil {
				log.Error().Err(err).Str("iface", name).Msg("Interface evaluation failed")
				summary.Skipped++
				continue
			}
			summary.Interfaces++
		}
	}

	summary.Duration = time.Since(start)
	c.metrics.ObserveTick(summary.Duration)

	c.mu.Lock()
	c.tickCount++
	c.lastTick = c.now()
	c.mu.Unlock()

	return summary
}

func (c *Collector) poolSize() int {
	if c.settings.Workers < len(c.devices) {
		return c.settings.Workers
	}
	return len(c.devices)
}

// pollAll polls every device on a bounded pool and waits for all of them.
// Results keep configuration order.
func (c *Collector) pollAll(ctx context.Context) []pollResult {
	results := make([]pollResult, len(c.devices))

	var g errgroup.Group
	g.SetLimit(c.poolSize())

	for i, dev := range c.devices {
		g.Go(func() error {
			results[i] = c.pollDevice(ctx, dev)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// pollDevice polls one device, bounded by the device or global poll timeout.
// A client that ignores cancellation is abandoned once the timeout expires.
func (c *Collector) pollDevice(ctx context.Context, dev Device) pollResult {
	timeout := c.settings.PollTimeout
	if dev.Timeout > 0 {
		timeout = dev.Timeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan pollResult, 1)

	go func() {
		res := pollResult{device: dev}
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("poll %s: panic: %v", dev.Name, r)
			}
			done <- res
		}()
		res.snapshots, res.err = c.client.Poll(pollCtx, dev)
	}()

	var res pollResult
	select {
	case res = <-done:
	case <-pollCtx.Done():
		res = pollResult{device: dev, err: fmt.Errorf("%w after %s: %w", ErrPollTimedOut, timeout, pollCtx.Err())}
	}

	c.metrics.ObservePoll(dev.Name, time.Since(start), res.err)
	return res
}

// processInterface evaluates one interface against its last stored
// snapshot. It reports whether a transition was emitted. Any failure leaves
// the stored snapshot untouched.
func (c *Collector) processInterface(ctx context.Context, dev Device, name string, cur Snapshot) (emitted bool, err error) {
	key := Key{Device: dev.Name, Iface: name}
	defer func() {
		if r := recover(); r != nil {
			err = &ClassificationError{Key: key, Cause: r}
		}
	}()

	th := c.settings.Thresholds

	prev, err := c.store.GetLast(ctx, dev.Name, name)
	if err != nil {
		return false, fmt.Errorf("load last snapshot: %w", err)
	}

	cur = cur.Clone()
	if cur.Name == "" {
		cur.Name = name
	}
	if cur.ExpectedSpeedMbps == 0 {
		cur.ExpectedSpeedMbps = dev.ExpectedSpeedMbps
	}
	cur.DownsWindow = CarryWindow(prev, cur, th.FlapsWindow)

	state, diag := Classify(cur, prev, th)
	rates := CalculateRates(prev, cur)
	c.metrics.ObserveInterface(dev.Name, name, state, rates)

	from, changed := DetectTransition(prev, state, th)
	if pending, ok := c.pendingState(key, prev); ok {
		from, changed = &pending, pending != state
	}

	if changed {
		t := Transition{
			ID:          uuid.NewString(),
			Device:      dev.Name,
			Iface:       name,
			From:        from,
			To:          state,
			Diagnostics: diag,
			Timestamp:   cur.Timestamp,
		}
		// The log entry must exist before anyone is told. Without it the
		// snapshot is not saved either, so the next tick retries.
		if err := c.store.AppendEvent(ctx, t); err != nil {
			return false, fmt.Errorf("append event: %w", err)
		}
		emitted = true

		c.logger.Info().
			Str("device", dev.Name).
			Str("iface", name).
			Str("state", string(state)).
			Str("reason", diag.Reason).
			Bool("initial", t.Initial()).
			Msg("Interface state transition")

		c.metrics.ObserveTransition(t)
		c.notifier.Notify(ctx, t)
		c.publish(t)
	}

	cur.DownsWindow = AdvanceWindow(prev, cur, th.FlapsWindow)
	if err := c.store.Save(ctx, dev.Name, name, cur); err != nil {
		c.mu.Lock()
		c.unsaved[key] = newUnsavedState(prev, state)
		c.mu.Unlock()
		return emitted, fmt.Errorf("save snapshot: %w", err)
	}

	c.mu.Lock()
	delete(c.unsaved, key)
	c.board[key] = InterfaceStatus{
		Device:      dev.Name,
		Iface:       name,
		State:       state,
		Diagnostics: diag,
		Rates:       rates,
		SpeedMbps:   cur.Speed.Mbps(),
		LastPoll:    c.now(),
	}
	c.mu.Unlock()

	return emitted, nil
}

// pendingState returns the state last classified for key when its snapshot
// failed to save and prev is still the snapshot that evaluation started from.
func (c *Collector) pendingState(key Key, prev *Snapshot) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.unsaved[key]
	if !ok || !u.follows(prev) {
		return "", false
	}
	return u.state, true
}

// Snapshot returns a point-in-time copy of the status board, sorted by
// device then interface. It is safe to call from any goroutine.
func (c *Collector) Snapshot() BoardSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := BoardSnapshot{
		Interfaces: make([]InterfaceStatus, 0, len(c.board)),
		LastTick:   c.lastTick,
		TickCount:  c.tickCount,
		ErrorCount: c.errorCount,
	}
	for _, st := range c.board {
		snap.Interfaces = append(snap.Interfaces, st)
	}
	sort.Slice(snap.Interfaces, func(i, j int) bool {
		a, b := snap.Interfaces[i], snap.Interfaces[j]
		if a.Device != b.Device {
			return a.Device < b.Device
		}
		return a.Iface < b.Iface
	})
	return snap
}

// Subscribe returns a channel that receives every emitted transition.
// Slow subscribers miss transitions rather than stall the collector.
func (c *Collector) Subscribe() <-chan Transition {
	ch := make(chan Transition, subscriberBuffer)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (c *Collector) Unsubscribe(sub <-chan Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ch := range c.subscribers {
		if ch == sub {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (c *Collector) publish(t Transition) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- t:
		default:
		}
	}
}

func (c *Collector) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
}
