package client

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// Pacer is a minimum-interval gate. Every ledger request waits until at least
// interval has passed since the previous request was released. The gate
// starts closed: the first request waits out the interval measured from
// construction.
type Pacer struct {
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a gate. A nil clock uses wall time.
func NewPacer(interval time.Duration, clk clock.Clock) *Pacer {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Pacer{
		clock:    clk,
		interval: interval,
		last:     clk.Now(),
	}
}

// Interval returns the configured minimum spacing between requests.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the next request may be sent and returns how long it
// waited. Concurrent callers are released one at a time.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.clock.Now()
	remaining := p.interval - start.Sub(p.last)
	if remaining <= 0 {
		p.last = start
		return 0, nil
	}

	select {
	case <-p.clock.TickAfter(remaining):
	case <-ctx.Done():
		return p.clock.Now().Sub(start), ctx.Err()
	}

	p.last = p.clock.Now()
	return p.last.Sub(start), nil
}
