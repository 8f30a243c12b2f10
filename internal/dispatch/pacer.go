package dispatch

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces calls so that consecutive calls start at least gap apart.
// The time of the last call is the only state and is guarded by a mutex;
// callers reserve a slot under the lock and sleep outside it.
type Pacer struct {
	mu   sync.Mutex
	gap  time.Duration
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with the given minimum spacing.
func NewPacer(gap time.Duration) *Pacer {
	return &Pacer{gap: gap, now: time.Now, sleep: sleepContext}
}

// Gap returns the configured spacing.
func (p *Pacer) Gap() time.Duration {
	return p.gap
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	now := p.now()
	slot := now
	if !p.last.IsZero() {
		if next := p.last.Add(p.gap); next.After(now) {
			slot = next
		}
	}
	p.last = slot
	p.mu.Unlock()

	if d := slot.Sub(now); d > 0 {
		return p.sleep(ctx, d)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
