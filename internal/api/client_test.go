package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonhe/nocwatch/internal/engine"
)

func TestClientReads(t *testing.T) {
	_, ts := newTestServer(t, Config{APIKey: "k"}, seededStore(t))
	ctx := context.Background()

	c, err := NewClient(ts.URL, "k", time.Second)
	require.NoError(t, err)

	require.NoError(t, c.Health(ctx))

	devices, err := c.Devices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	snaps, err := c.DeviceInterfaces(ctx, "core-1")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	board, err := c.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, board.TickCount)

	events, err := c.Events(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].Timestamp)
}

func TestClientStatusError(t *testing.T) {
	_, ts := newTestServer(t, Config{APIKey: "k"}, seededStore(t))

	c, err := NewClient(ts.URL, "", time.Second)
	require.NoError(t, err)

	_, err = c.Board(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Status)
	assert.Contains(t, se.Error(), "invalid or missing API key")
}

func TestClientStream(t *testing.T) {
	board, ts := newTestServer(t, Config{APIKey: "k"}, seededStore(t))

	c, err := NewClient(ts.URL, "k", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan engine.Transition, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Stream(ctx, func(t engine.Transition) { got <- t })
	}()

	select {
	case <-board.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed")
	}

	up := engine.StateUp
	board.send(engine.Transition{ID: "x", Device: "core-1", Iface: "sfp1", From: &up, To: engine.StateDown})

	select {
	case tr := <-got:
		assert.Equal(t, "x", tr.ID)
		require.NotNil(t, tr.From)
		assert.Equal(t, engine.StateUp, *tr.From)
	case <-time.After(2 * time.Second):
		t.Fatal("transition not delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	select {
	case <-board.released:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released")
	}
}

func TestNewClientAddsScheme(t *testing.T) {
	c, err := NewClient("127.0.0.1:8080", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/api/v1/events?limit=5",
		c.endpoint("/events", map[string][]string{"limit": {"5"}}))
}
