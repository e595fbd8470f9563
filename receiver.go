//go:build !windows
// +build !windows

package main

import (
	"context"
	"fmt"

	"github.com/cbrunnkvist/canlat/canbus"
)

// receiveLoop blocks on the receive channel and turns every arriving probe
// frame into one round-trip sample, then re-grants the handshake.
//
// It returns nil when ctx is done, errCapacityExhausted once the trace
// buffer is full, and the receive error otherwise.
func (s *Session) receiveLoop(ctx context.Context) error {
	s.log.Debug("receiver: start")
	defer s.log.Debug("receiver: stop")

	s.elevate("receiver")

	var f canbus.Frame
	for ctx.Err() == nil {
		if err := s.rx.Receive(ctx, &f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			channelErrors.WithLabelValues(string(canbus.OpReceive)).Inc()
			err = channelError(canbus.OpReceive, s.rx.Name(), err)
			s.log.WithError(err).Error("receiver: receive failed")
			return err
		}
		now := s.clock.Now()

		// Foreign traffic and frames that predate the first emission say
		// nothing about our round trip.
		if f.ID != canbus.ProbeID || f.IsExtended {
			continue
		}
		last := s.state.lastSend.Load()
		if last == 0 {
			continue
		}
		elapsed := now.Sub(timestampFromNanos(last))

		s.markArrived()
		s.received.Add(1)
		framesReceived.Inc()
		roundTripSeconds.Observe(float64(elapsed) / float64(nsPerSec))

		report, complete := s.stats.Add(elapsed)
		full := false
		if s.trace != nil {
			full = s.trace.Append(elapsed)
		}

		s.state.handshake.Store(true)

		if complete {
			s.writeReport(report)
		}
		if full {
			s.log.WithField("samples", s.trace.Len()).Info("trace buffer full, stopping")
			return errCapacityExhausted
		}
	}
	return nil
}

func (s *Session) writeReport(r Report) {
	s.reports.Add(1)
	reportsWritten.Inc()
	if _, err := fmt.Fprintln(s.out, r.String()); err != nil {
		s.log.WithError(err).Warn("receiver: cannot write report")
	}
}
