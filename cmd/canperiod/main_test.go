package main

import (
	"testing"
	"time"
)

func TestIntervals(t *testing.T) {
	var iv intervals
	start := time.Now()
	iv.add(start) // primes only
	iv.add(start.Add(10 * time.Millisecond))
	iv.add(start.Add(15 * time.Millisecond))
	iv.add(start.Add(30 * time.Millisecond))

	if iv.count != 3 {
		t.Fatalf("count: got %d, want 3", iv.count)
	}
	if iv.min != 5*time.Millisecond || iv.max != 15*time.Millisecond {
		t.Errorf("min/max: got %v/%v", iv.min, iv.max)
	}
	want := "Count: 3 | Min: 5ms | Max: 15ms | Avg: 10ms | Rate: 100.0 frames/s"
	if got := iv.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
