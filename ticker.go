//go:build !windows
// +build !windows

package main

import (
	"context"
	"time"

	"github.com/m-lab/go/memoryless"
	"golang.org/x/time/rate"
)

// tickSource paces the sender. Wait blocks until the next tick or until ctx
// is done.
type tickSource interface {
	Wait(ctx context.Context) error
	Stop()
}

// newTickSource returns a fixed-period source, or a memoryless one whose
// intervals are exponentially distributed around period. Memoryless ticks
// avoid phase-locking with periodic activity elsewhere on the bus.
func newTickSource(ctx context.Context, period time.Duration, poisson bool) (tickSource, error) {
	if !poisson {
		return newPeriodicTicks(period), nil
	}
	t, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      period / 10,
		Expected: period,
		Max:      period * 10,
	})
	if err != nil {
		return nil, err
	}
	return &memorylessTicks{ticker: t}, nil
}

// periodicTicks uses a token bucket with a burst of one: each Wait consumes
// one token, so successive ticks are at least period apart and a slow
// iteration does not cause a burst of catch-up ticks.
type periodicTicks struct {
	limiter *rate.Limiter
}

func newPeriodicTicks(period time.Duration) *periodicTicks {
	return &periodicTicks{limiter: rate.NewLimiter(rate.Every(period), 1)}
}

func (p *periodicTicks) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

func (p *periodicTicks) Stop() {}

type memorylessTicks struct {
	ticker *memoryless.Ticker
}

func (m *memorylessTicks) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-m.ticker.C:
		if !ok {
			return context.Canceled
		}
		return nil
	}
}

func (m *memorylessTicks) Stop() {
	m.ticker.Stop()
}
