// canperiod measures inter-arrival times of one CAN identifier on an
// interface, to check the probe cadence canlat actually achieves on the bus.
//
// Usage: canlat can0 can1 & go run ./cmd/canperiod -d 10s can1
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/cbrunnkvist/canlat/canbus"
)

func main() {
	fs := flag.NewFlagSet("canperiod", flag.ExitOnError)
	fs.SortFlags = false
	id := fs.Uint32("id", canbus.ProbeID, "CAN identifier to watch")
	count := fs.IntP("count", "n", 0, "Stop after this many intervals (0=unlimited)")
	duration := fs.DurationP("duration", "d", 0, "Stop after this long (0=until interrupted)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: canperiod [flags] <interface>")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	ch, err := canbus.Open(fs.Arg(0), canbus.Options{IDs: []uint32{*id}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, *duration)
		defer stop()
	}

	var iv intervals
	var f canbus.Frame
	for *count == 0 || iv.count < *count {
		if err := ch.Receive(ctx, &f); err != nil {
			if ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			break
		}
		iv.add(time.Now())
	}

	if iv.count > 0 {
		fmt.Println(iv)
	}
}

// intervals accumulates the gaps between successive arrivals. The first
// arrival only primes the clock.
type intervals struct {
	prev     time.Time
	count    int
	sum      time.Duration
	min, max time.Duration
}

func (iv *intervals) add(now time.Time) {
	if iv.prev.IsZero() {
		iv.prev = now
		return
	}
	delta := now.Sub(iv.prev)
	iv.prev = now

	if iv.count == 0 || delta < iv.min {
		iv.min = delta
	}
	if delta > iv.max {
		iv.max = delta
	}
	iv.sum += delta
	iv.count++
}

func (iv intervals) String() string {
	avg := iv.sum / time.Duration(iv.count)
	rate := float64(time.Second) / float64(avg)
	return fmt.Sprintf("Count: %d | Min: %v | Max: %v | Avg: %v | Rate: %.1f frames/s", iv.count, iv.min, iv.max, avg, rate)
}
