//go:build !windows
// +build !windows

package main

import (
	"context"

	"github.com/cbrunnkvist/canlat/canbus"
)

// sendLoop emits the probe frame once per tick, but only while the
// handshake is granted. A tick that finds the previous frame still in
// flight is skipped rather than queued, so the emission rate degrades
// instead of the one-outstanding-frame invariant.
//
// It returns nil when ctx is done and the send error otherwise.
func (s *Session) sendLoop(ctx context.Context, ticks tickSource) error {
	s.log.Debug("sender: start")
	defer s.log.Debug("sender: stop")

	s.elevate("sender")

	frame := canbus.ProbeFrame()
	for {
		if err := ticks.Wait(ctx); err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if !s.state.handshake.CompareAndSwap(true, false) {
			s.skipped.Add(1)
			ticksSkipped.Inc()
			continue
		}

		s.markEmitted()
		s.state.lastSend.Store(s.clock.Now().Nanoseconds())
		if err := s.tx.Send(frame); err != nil {
			s.markArrived()
			channelErrors.WithLabelValues(string(canbus.OpSend)).Inc()
			err = channelError(canbus.OpSend, s.tx.Name(), err)
			s.log.WithError(err).Error("sender: send failed")
			return err
		}
		s.sent.Add(1)
		framesSent.Inc()
	}
}
