//go:build !windows
// +build !windows

package main

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// profiles defines preset measurement configurations.
var profiles = map[string]Config{
	// Defaults: one probe per millisecond, a report line per second
	"default": {
		Period: time.Millisecond,
		Window: 1000,
	},

	// Slower cadence for busy production buses
	"legacy": {
		Period: 10 * time.Millisecond,
		Window: 100,
	},

	// Back-to-back probing; most ticks are skipped on a 125k bus
	"fast": {
		Period: 250 * time.Microsecond,
		Window: 4000,
	},

	// Poisson-spaced probes, avoids phase-locking with periodic bus traffic
	"poisson": {
		Period:     time.Millisecond,
		Window:     1000,
		Memoryless: true,
	},

	// Simulated 500 kbit/s bus with transceiver delay, no hardware needed
	"sim-500k": {
		Period:         time.Millisecond,
		Window:         1000,
		Virtual:        true,
		VirtualDelay:   20 * time.Microsecond,
		VirtualJitter:  5 * time.Microsecond,
		VirtualBitrate: 500000,
	},

	// Short capture for offline analysis with tracestat
	"trace-10k": {
		Period:        time.Millisecond,
		Window:        1000,
		TraceCapacity: 10000,
	},
}

func printProfiles(w io.Writer) {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available profiles:")
	fmt.Fprintln(w, "")
	for _, name := range names {
		p := profiles[name]
		line := fmt.Sprintf("  %-10s period=%v window=%d", name, p.Period, p.Window)
		if p.TraceCapacity > 0 {
			line += fmt.Sprintf(" trace=%d", p.TraceCapacity)
		}
		if p.Memoryless {
			line += " memoryless"
		}
		if p.Virtual {
			line += fmt.Sprintf(" virtual(bitrate=%d delay=%v jitter=%v)", p.VirtualBitrate, p.VirtualDelay, p.VirtualJitter)
		}
		fmt.Fprintln(w, line)
	}
}
