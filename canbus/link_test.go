package canbus

import (
	"context"
	"testing"
	"time"
)

func TestFrameBits(t *testing.T) {
	// Standard frame, one data byte: 47 + 8 + 10 stuff bits
	if got := frameBits(ProbeFrame()); got != 65 {
		t.Errorf("probe frame: got %d bits, want 65", got)
	}
	// Remote frames carry no data regardless of Length
	if got := frameBits(Frame{ID: 1, Length: 8, IsRemote: true}); got != 55 {
		t.Errorf("remote frame: got %d bits, want 55", got)
	}
	if got := frameBits(Frame{ID: 1, Length: 8, IsExtended: true}); got != 67+64+29 {
		t.Errorf("extended frame: got %d bits, want %d", got, 67+64+29)
	}
}

func TestLinkSerialization(t *testing.T) {
	// 65 bits at 65 kbit/s = 1ms per probe frame
	l := newLink(LinkConfig{Bitrate: 65000, Seed: 42})
	now := time.Now()

	first := l.transit(now, ProbeFrame())
	second := l.transit(now, ProbeFrame())
	if first != time.Millisecond {
		t.Errorf("first frame: got %v, want 1ms", first)
	}
	// The second frame waits for the first to leave the wire
	if second != 2*time.Millisecond {
		t.Errorf("second frame: got %v, want 2ms", second)
	}

	// An idle wire starts fresh
	later := now.Add(time.Second)
	if d := l.transit(later, ProbeFrame()); d != time.Millisecond {
		t.Errorf("after idle: got %v, want 1ms", d)
	}
}

func TestLinkJitterBounds(t *testing.T) {
	cfg := LinkConfig{
		Delay:  10 * time.Millisecond,
		Jitter: 4 * time.Millisecond,
		Seed:   42,
	}
	l := newLink(cfg)
	now := time.Now()
	for i := 0; i < 100; i++ {
		// Spread sends out so ordering never clamps the result
		at := now.Add(time.Duration(i) * time.Second)
		d := l.transit(at, ProbeFrame())
		if d < cfg.Delay-cfg.Jitter || d > cfg.Delay+cfg.Jitter {
			t.Fatalf("iteration %d: delay %v outside [%v, %v]", i, d, cfg.Delay-cfg.Jitter, cfg.Delay+cfg.Jitter)
		}
	}
}

func TestLinkNeverReorders(t *testing.T) {
	l := newLink(LinkConfig{
		Delay:  5 * time.Millisecond,
		Jitter: 5 * time.Millisecond,
		Seed:   7,
	})
	now := time.Now()
	var last time.Time
	for i := 0; i < 200; i++ {
		at := now.Add(time.Duration(i) * 100 * time.Microsecond)
		due := at.Add(l.transit(at, ProbeFrame()))
		if due.Before(last) {
			t.Fatalf("frame %d due at %v, before previous frame at %v", i, due, last)
		}
		last = due
	}
}

func TestShapedBusDelivery(t *testing.T) {
	bus := NewShapedBus(LinkConfig{
		Delay:   20 * time.Millisecond,
		Bitrate: 125000,
		Seed:    42,
	})
	tx := mustOpen(t, bus, "vcan0", Options{SendOnly: true})
	rx := mustOpen(t, bus, "vcan1", Options{})

	start := time.Now()
	if err := tx.Send(ProbeFrame()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var f Frame
	if err := rx.Receive(ctx, &f); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	// Allow scheduling slack above the modeled delay
	elapsed := time.Since(start)
	if elapsed < 20*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("frame arrived after %v, expected 20ms to 200ms", elapsed)
	}
}
