//go:build !linux && !windows
// +build !linux,!windows

package main

import "time"

var clockEpoch = time.Now()

// Now derives a reading from the runtime's monotonic clock.
func (monotonicClock) Now() Timestamp {
	return timestampFromNanos(time.Since(clockEpoch).Nanoseconds())
}
