package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records requested sleeps and advances time by them.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func newFakePacer(gap time.Duration) (*Pacer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := NewPacer(gap)
	p.now = clock.Now
	p.sleep = clock.Sleep
	return p, clock
}

func TestPacer_FirstCallDoesNotWait(t *testing.T) {
	p, clock := newFakePacer(500 * time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))
	assert.Empty(t, clock.sleeps)
}

func TestPacer_SpacesConsecutiveCalls(t *testing.T) {
	p, clock := newFakePacer(500 * time.Millisecond)

	require.NoError(t, p.Wait(context.Background()))
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, clock.sleeps)

	// Enough time passed since the reserved slot: no wait.
	clock.Advance(time.Second)
	require.NoError(t, p.Wait(context.Background()))
	assert.Len(t, clock.sleeps, 1)
}

func TestPacer_ConcurrentCallersGetDistinctSlots(t *testing.T) {
	p, clock := newFakePacer(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Wait(context.Background())
		}()
	}
	wg.Wait()

	// Time never advances, so the callers are queued 1s, 2s and 3s out.
	assert.ElementsMatch(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, clock.sleeps)
}

func TestPacer_Cancelled(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacer_RealSleep(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
