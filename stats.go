//go:build !windows
// +build !windows

package main

import (
	"fmt"
	"math"
)

// DefaultWindow is the number of samples summarized by one report line.
const DefaultWindow = 1000

// reportHeader names the columns of Report.String.
const reportHeader = "min\tmax\tavg\trunning"

// Report summarizes one window of round-trip samples, in nanoseconds.
type Report struct {
	Min  int64
	Max  int64
	Mean int64 // sum of the window / window size

	// Running is the mean of every sample since the session started.
	Running int64
}

func (r Report) String() string {
	return fmt.Sprintf("%d\t%d\t%d\t%d", r.Min, r.Max, r.Mean, r.Running)
}

// StatsWindow aggregates samples into fixed-size windows. All arithmetic is
// integer nanoseconds. It is owned by the receiver and not safe for
// concurrent use.
type StatsWindow struct {
	size  int
	count int
	min   int64
	max   int64
	sum   int64

	total int64
	n     int64
}

// NewStatsWindow creates a window of size samples (at least 1).
func NewStatsWindow(size int) *StatsWindow {
	if size < 1 {
		size = 1
	}
	w := &StatsWindow{size: size}
	w.reset()
	return w
}

// Add records one sample. When the window fills, it returns the window's
// report and true, and the next sample starts a fresh window.
func (w *StatsWindow) Add(ns int64) (Report, bool) {
	if ns < w.min {
		w.min = ns
	}
	if ns > w.max {
		w.max = ns
	}
	w.sum += ns
	w.count++
	w.total += ns
	w.n++

	if w.count < w.size {
		return Report{}, false
	}
	r := Report{
		Min:     w.min,
		Max:     w.max,
		Mean:    w.sum / int64(w.size),
		Running: w.total / w.n,
	}
	w.reset()
	return r, true
}

// Count returns the number of samples in the current, unreported window.
func (w *StatsWindow) Count() int {
	return w.count
}

func (w *StatsWindow) reset() {
	w.count = 0
	w.min = math.MaxInt64
	w.max = 0
	w.sum = 0
}
