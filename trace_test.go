//go:build !windows
// +build !windows

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/m-lab/go/rtx"
)

func TestTraceBufferFills(t *testing.T) {
	tr := NewTraceBuffer(3)
	if tr.Append(10) || tr.Append(20) {
		t.Fatal("buffer reported full early")
	}
	if !tr.Append(30) {
		t.Fatal("buffer not full after 3 samples")
	}
	// Extra samples are discarded
	if !tr.Append(40) {
		t.Error("full buffer stopped reporting full")
	}
	if diff := cmp.Diff([]int64{10, 20, 30}, tr.Samples()); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}
	if tr.Len() != 3 || tr.Cap() != 3 {
		t.Errorf("len/cap: got %d/%d", tr.Len(), tr.Cap())
	}
}

func TestTraceBufferWritesFilledPrefix(t *testing.T) {
	tr := NewTraceBuffer(5)
	tr.Append(123)
	tr.Append(0)

	var buf bytes.Buffer
	n, err := tr.WriteTo(&buf)
	rtx.Must(err, "WriteTo failed")
	if got := buf.String(); got != "123\n0\n" {
		t.Errorf("got %q, want %q", got, "123\n0\n")
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo returned %d, wrote %d bytes", n, buf.Len())
	}
}

func TestTraceBufferFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.txt")
	tr := NewTraceBuffer(4)
	want := []int64{250000, 249000, 251500, 1}
	for _, ns := range want {
		tr.Append(ns)
	}
	rtx.Must(tr.Flush(path), "Flush failed")

	data, err := os.ReadFile(path)
	rtx.Must(err, "cannot read trace")
	var got []int64
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		ns, err := strconv.ParseInt(line, 10, 64)
		rtx.Must(err, "bad trace line %q", line)
		got = append(got, ns)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceBufferFlushBadPath(t *testing.T) {
	tr := NewTraceBuffer(1)
	tr.Append(1)
	if err := tr.Flush(filepath.Join(t.TempDir(), "missing", "stats.txt")); err == nil {
		t.Error("expected error writing to a missing directory")
	}
}
