//go:build !windows
// +build !windows

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/cbrunnkvist/canlat/canbus"
)

// DefaultPeriod is the sender tick period.
const DefaultPeriod = time.Millisecond

// DefaultPriority is the SCHED_FIFO priority requested for both loops.
const DefaultPriority = 80

// errCapacityExhausted ends a session normally once the trace buffer is full.
var errCapacityExhausted = errors.New("trace buffer full")

// SessionConfig holds the measurement parameters of one session.
type SessionConfig struct {
	Period        time.Duration // Sender tick period
	Memoryless    bool          // Exponentially distributed ticks with Period as mean
	Window        int           // Samples per report line
	TraceCapacity int           // Raw samples to keep (0 = no trace)
	TraceFile     string        // Trace output path
	Priority      int           // SCHED_FIFO priority (0 = leave scheduling alone)
}

// Summary counts what happened during a session.
type Summary struct {
	Sent         uint64
	Received     uint64
	Skipped      uint64 // Ticks without emission because the handshake was not granted
	Reports      uint64
	PeakInFlight int64
}

// sharedState is the only state touched by both loops.
//
// handshake is set by the receiver once a round trip completes and cleared
// by the sender right before it emits; together they keep at most one frame
// in flight. lastSend is written by the sender before emitting and read by
// the receiver after the frame arrives.
type sharedState struct {
	handshake atomic.Bool
	lastSend  atomic.Int64 // Timestamp.Nanoseconds of the last emission
}

// Session runs the sender and receiver loops over a pair of channels.
type Session struct {
	id  string
	cfg SessionConfig
	log *log.Entry

	tx, rx canbus.Channel
	out    io.Writer
	clock  Clock

	state sharedState
	stats *StatsWindow
	trace *TraceBuffer

	sent, received, skipped, reports atomic.Uint64
	inFlight, peakInFlight           atomic.Int64
}

// NewSession creates a session that emits on tx, listens on rx and writes
// report lines to out. Zero config values fall back to the defaults.
func NewSession(cfg SessionConfig, tx, rx canbus.Channel, out io.Writer) *Session {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Window < 1 {
		cfg.Window = DefaultWindow
	}
	if cfg.TraceFile == "" {
		cfg.TraceFile = DefaultTraceFile
	}
	id := uuid.NewString()
	s := &Session{
		id:    id,
		cfg:   cfg,
		log:   logger.WithField("session", id),
		tx:    tx,
		rx:    rx,
		out:   out,
		clock: monotonicClock{},
		stats: NewStatsWindow(cfg.Window),
	}
	if cfg.TraceCapacity > 0 {
		s.trace = NewTraceBuffer(cfg.TraceCapacity)
	}
	return s
}

// ID identifies the session in log output.
func (s *Session) ID() string { return s.id }

// Run starts the receiver and sender loops and blocks until both have
// stopped. The loops stop when ctx is done, when the trace buffer fills, or
// on the first channel error, which is returned as a *canbus.OpError. The
// trace, if enabled, is written on every path.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks, err := newTickSource(ctx, s.cfg.Period, s.cfg.Memoryless)
	if err != nil {
		return Summary{}, fmt.Errorf("creating tick source: %w", err)
	}
	defer ticks.Stop()

	// Pre-granted so the first tick emits immediately.
	s.state.handshake.Store(true)

	s.log.WithFields(log.Fields{
		"tx":     s.tx.Name(),
		"rx":     s.rx.Name(),
		"period": s.cfg.Period,
		"window": s.cfg.Window,
	}).Debug("session: start")

	var wg sync.WaitGroup
	var sendErr, recvErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		recvErr = s.receiveLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		sendErr = s.sendLoop(ctx, ticks)
	}()
	wg.Wait()

	err = firstFatal(sendErr, recvErr)
	if s.trace != nil {
		if ferr := s.trace.Flush(s.cfg.TraceFile); ferr != nil {
			s.log.WithError(ferr).WithField("file", s.cfg.TraceFile).Error("cannot write trace")
			if err == nil {
				err = ferr
			}
		} else {
			s.log.WithFields(log.Fields{
				"file":    s.cfg.TraceFile,
				"samples": s.trace.Len(),
			}).Info("trace written")
		}
	}

	s.log.Debug("session: stop")
	return s.Summary(), err
}

// Summary returns the current counters.
func (s *Session) Summary() Summary {
	return Summary{
		Sent:         s.sent.Load(),
		Received:     s.received.Load(),
		Skipped:      s.skipped.Load(),
		Reports:      s.reports.Load(),
		PeakInFlight: s.peakInFlight.Load(),
	}
}

// elevate requests realtime scheduling for the calling loop. Failure only
// costs measurement quality, so it is logged and ignored.
func (s *Session) elevate(role string) {
	if s.cfg.Priority <= 0 {
		return
	}
	if err := elevatePriority(s.cfg.Priority); err != nil {
		s.log.WithError(err).WithField("role", role).Info("realtime priority not granted, continuing at normal priority")
		return
	}
	s.log.WithFields(log.Fields{"role": role, "priority": s.cfg.Priority}).Debug("realtime priority granted")
}

func (s *Session) markEmitted() {
	n := s.inFlight.Add(1)
	for {
		peak := s.peakInFlight.Load()
		if n <= peak || s.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	framesInFlight.Set(float64(n))
}

func (s *Session) markArrived() {
	framesInFlight.Set(float64(s.inFlight.Add(-1)))
}

// firstFatal returns the first error that should fail the session.
func firstFatal(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, errCapacityExhausted) {
			return err
		}
	}
	return nil
}

// channelError makes sure err carries the operation and interface.
func channelError(op canbus.Op, iface string, err error) error {
	var opErr *canbus.OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &canbus.OpError{Op: op, Iface: iface, Err: err}
}
