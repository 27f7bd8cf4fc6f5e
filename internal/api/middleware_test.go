package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	now := start

	rl := NewRateLimiter(10, 5)
	rl.now = func() time.Time { return now }
	rl.lastSweep = start

	rl.Limiter("192.0.2.1")
	rl.Limiter("192.0.2.2")
	assert.Equal(t, 2, rl.Len())

	now = start.Add(6 * time.Minute)
	busy := rl.Limiter("192.0.2.1")
	assert.Equal(t, 2, rl.Len())

	now = start.Add(idleLimiterTTL + time.Minute)
	assert.Same(t, busy, rl.Limiter("192.0.2.1"))
	assert.Equal(t, 1, rl.Len())

	now = now.Add(2 * idleLimiterTTL)
	rl.Limiter("192.0.2.3")
	assert.Equal(t, 1, rl.Len())
}

func TestRateLimiterKeepsBucketPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)

	assert.True(t, rl.Limiter("192.0.2.1").Allow())
	assert.False(t, rl.Limiter("192.0.2.1").Allow())
	assert.True(t, rl.Limiter("192.0.2.2").Allow())
}
