//go:build !windows
// +build !windows

package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStatsWindowReport(t *testing.T) {
	w := NewStatsWindow(4)
	samples := []int64{100, 50, 200, 150}

	for i, ns := range samples[:3] {
		if _, ok := w.Add(ns); ok {
			t.Fatalf("sample %d completed a window of 4", i)
		}
	}
	got, ok := w.Add(samples[3])
	if !ok {
		t.Fatal("fourth sample did not complete the window")
	}

	want := Report{Min: 50, Max: 200, Mean: 125, Running: 125}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if got.String() != "50\t200\t125\t125" {
		t.Errorf("unexpected report line %q", got.String())
	}
	if w.Count() != 0 {
		t.Errorf("window not reset: %d samples pending", w.Count())
	}
}

func TestStatsWindowResets(t *testing.T) {
	w := NewStatsWindow(2)

	w.Add(10)
	first, _ := w.Add(30)
	w.Add(1000)
	second, _ := w.Add(2000)

	// Min and max of the second window must not leak from the first
	if second.Min != 1000 || second.Max != 2000 || second.Mean != 1500 {
		t.Errorf("second window: got %+v", second)
	}
	if first.Running != 20 {
		t.Errorf("first running mean: got %d, want 20", first.Running)
	}
	// Running mean spans both windows: (10+30+1000+2000)/4
	if second.Running != 760 {
		t.Errorf("second running mean: got %d, want 760", second.Running)
	}
}

func TestStatsWindowOrdering(t *testing.T) {
	w := NewStatsWindow(5)
	samples := []int64{7, 3, 3, 90, 12, 5, 5, 5, 5, 5}
	for _, ns := range samples {
		r, ok := w.Add(ns)
		if !ok {
			continue
		}
		if !(r.Min <= r.Mean && r.Mean <= r.Max) {
			t.Errorf("report violates min <= mean <= max: %+v", r)
		}
	}
}

func TestStatsWindowSizeOne(t *testing.T) {
	w := NewStatsWindow(0) // clamped to 1
	r, ok := w.Add(42)
	if !ok {
		t.Fatal("window of one did not report")
	}
	if r.Min != 42 || r.Max != 42 || r.Mean != 42 {
		t.Errorf("got %+v", r)
	}
}

func TestStatsWindowZeroSamples(t *testing.T) {
	// A loopback that never delays still yields valid zero reports
	w := NewStatsWindow(3)
	w.Add(0)
	w.Add(0)
	r, ok := w.Add(0)
	if !ok {
		t.Fatal("window did not report")
	}
	if diff := cmp.Diff(Report{}, r); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}
