//go:build !windows
// +build !windows

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// DefaultTraceFile is where the raw samples are written at shutdown.
const DefaultTraceFile = "stats.txt"

// TraceBuffer holds every round-trip sample of a session. Its storage is
// allocated up front so that recording never allocates on the receive path.
type TraceBuffer struct {
	samples []int64
	n       int
}

// NewTraceBuffer allocates room for capacity samples.
func NewTraceBuffer(capacity int) *TraceBuffer {
	return &TraceBuffer{samples: make([]int64, capacity)}
}

// Append records ns and reports whether the buffer is now full. Samples
// offered to a full buffer are discarded.
func (t *TraceBuffer) Append(ns int64) (full bool) {
	if t.n < len(t.samples) {
		t.samples[t.n] = ns
		t.n++
	}
	return t.n == len(t.samples)
}

// Len returns the number of recorded samples.
func (t *TraceBuffer) Len() int { return t.n }

// Cap returns the buffer capacity.
func (t *TraceBuffer) Cap() int { return len(t.samples) }

// Samples returns the recorded samples in arrival order.
func (t *TraceBuffer) Samples() []int64 {
	return t.samples[:t.n]
}

// WriteTo writes one decimal sample per line. Unfilled slots are not
// written.
func (t *TraceBuffer) WriteTo(w io.Writer) (int64, error) {
	var written int64
	buf := make([]byte, 0, 24)
	for _, ns := range t.Samples() {
		buf = strconv.AppendInt(buf[:0], ns, 10)
		buf = append(buf, '\n')
		n, err := w.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Flush writes the trace to path, replacing any existing file.
func (t *TraceBuffer) Flush(path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fp)
	if _, err := t.WriteTo(bw); err != nil {
		fp.Close()
		return fmt.Errorf("writing trace: %w", err)
	}
	if err := bw.Flush(); err != nil {
		fp.Close()
		return fmt.Errorf("writing trace: %w", err)
	}
	return fp.Close()
}
