package main

import (
	"bytes"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadTrace(t *testing.T) {
	samples, err := readTrace(strings.NewReader("100\n50\n\n200\n150\n"))
	if err != nil {
		t.Fatalf("readTrace failed: %v", err)
	}
	if diff := cmp.Diff([]int64{100, 50, 200, 150}, samples); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	if _, err := readTrace(strings.NewReader("100\nabc\n")); err == nil {
		t.Error("expected error for non-numeric line")
	}
}

func TestSummarize(t *testing.T) {
	s := summarize([]int64{100, 50, 200, 150})
	if s.Count != 4 || s.Min != 50 || s.Max != 200 || s.Mean != 125 {
		t.Errorf("got %+v", s)
	}
	if s.Percentiles[50] != 100 {
		t.Errorf("p50: got %d, want 100", s.Percentiles[50])
	}
}

func TestPercentileSelectMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]int64, 5000)
	for i := range samples {
		samples[i] = rng.Int63n(1_000_000)
	}
	orig := append([]int64(nil), samples...)
	sorted := append([]int64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, p := range []float64{0, 50, 90, 99, 99.9, 100} {
		k := int(float64(len(sorted)-1) * (p / 100.0))
		if got := percentile(samples, p); got != sorted[k] {
			t.Errorf("p%v: got %d, want %d", p, got, sorted[k])
		}
	}
	if diff := cmp.Diff(orig, samples); diff != "" {
		t.Error("percentile reordered its input")
	}
}

func TestReplayWindows(t *testing.T) {
	var buf bytes.Buffer
	replayWindows(&buf, []int64{100, 50, 200, 150, 10, 20}, 2)
	want := "min\tmax\tavg\trunning\n" +
		"50\t100\t75\t75\n" +
		"150\t200\t175\t125\n" +
		"10\t20\t15\t88\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("replay mismatch (-want +got):\n%s", diff)
	}
}

func TestCountAbove(t *testing.T) {
	if n := countAbove([]int64{1, 5, 10, 11}, 10); n != 1 {
		t.Errorf("got %d, want 1", n)
	}
}
