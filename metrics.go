//go:build !windows
// +build !windows

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exported while a session runs.
var (
	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canlat_frames_sent_total",
		Help: "Number of probe frames emitted by the sender.",
	})
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canlat_frames_received_total",
		Help: "Number of probe frames observed by the receiver.",
	})
	ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canlat_ticks_skipped_total",
		Help: "Number of sender ticks skipped because the previous frame was still in flight.",
	})
	reportsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canlat_reports_total",
		Help: "Number of completed statistics windows.",
	})
	framesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canlat_frames_in_flight",
		Help: "Probe frames emitted but not yet received.",
	})
	roundTripSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "canlat_roundtrip_seconds",
		Help: "Round-trip time between emission and reception of a probe frame.",
		// 10us .. ~160ms
		Buckets: prometheus.ExponentialBuckets(10e-6, 2, 15),
	})
	channelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canlat_channel_errors_total",
			Help: "Fatal channel errors by operation.",
		},
		[]string{"op"},
	)
)

// metricsServer exposes the default registry over HTTP.
type metricsServer struct {
	srv *http.Server
	ln  net.Listener
}

// startMetricsServer listens on addr and serves /metrics in the background.
func startMetricsServer(addr string) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	ms := &metricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := ms.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server stopped")
		}
	}()
	return ms, nil
}

// Addr returns the bound listen address.
func (ms *metricsServer) Addr() string {
	return ms.ln.Addr().String()
}

func (ms *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ms.srv.Shutdown(ctx)
}
