//go:build !windows
// +build !windows

package main

const nsPerSec = int64(1_000_000_000)

// Timestamp is a monotonic clock reading. It is not related to wall time.
type Timestamp struct {
	Sec  int64
	Nsec int64
}

// Sub returns t-u in nanoseconds, carrying between the seconds and
// nanoseconds fields.
func (t Timestamp) Sub(u Timestamp) int64 {
	return (t.Sec-u.Sec)*nsPerSec + t.Nsec - u.Nsec
}

// Nanoseconds returns t as a single nanosecond count.
func (t Timestamp) Nanoseconds() int64 {
	return t.Sec*nsPerSec + t.Nsec
}

func timestampFromNanos(ns int64) Timestamp {
	return Timestamp{Sec: ns / nsPerSec, Nsec: ns % nsPerSec}
}

// Clock reads the current monotonic time.
type Clock interface {
	Now() Timestamp
}

// monotonicClock reads CLOCK_MONOTONIC where available.
type monotonicClock struct{}
