// tracestat summarizes a raw round-trip trace written by canlat --trace.
//
// Usage:
//  1. Record a trace:
//     canlat --trace 100000 -o stats.txt can0 can1
//
//  2. Analyze:
//     go run ./cmd/tracestat stats.txt
//
// With --window the trace is replayed into report lines in the same format
// canlat prints live.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

func main() {
	fs := flag.NewFlagSet("tracestat", flag.ExitOnError)
	fs.SortFlags = false
	window := fs.IntP("window", "w", 0, "Replay the trace as report lines of this many samples (0=off)")
	above := fs.Duration("above", time.Millisecond, "Count samples slower than this")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tracestat [flags] <trace-file>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Record a trace first:")
		fmt.Fprintln(os.Stderr, "  canlat --trace 100000 -o stats.txt can0 can1")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	filename := fs.Arg(0)
	fp, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	samples, err := readTrace(fp)
	fp.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", filename, err)
		os.Exit(1)
	}

	fmt.Printf("Analyzing: %s (%d samples)\n\n", filename, len(samples))
	if len(samples) == 0 {
		fmt.Println("No samples found")
		return
	}

	printSummary(os.Stdout, summarize(samples), countAbove(samples, above.Nanoseconds()), *above)
	if *window > 0 {
		fmt.Println("")
		replayWindows(os.Stdout, samples, *window)
	}
}

// readTrace parses one decimal nanosecond value per line. Blank lines are
// skipped.
func readTrace(r io.Reader) ([]int64, error) {
	var samples []int64
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ns, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, ns)
	}
	return samples, scanner.Err()
}

func printSummary(w io.Writer, s summary, slow int, above time.Duration) {
	fmt.Fprintln(w, "Round-trip statistics (ns):")
	fmt.Fprintln(w, "===========================")
	fmt.Fprintf(w, "  Count:  %d\n", s.Count)
	fmt.Fprintf(w, "  Min:    %d\n", s.Min)
	fmt.Fprintf(w, "  Max:    %d\n", s.Max)
	fmt.Fprintf(w, "  Mean:   %d\n", s.Mean)
	fmt.Fprintf(w, "  Stddev: %.0f\n", s.Stddev)
	for _, p := range reportedPercentiles {
		fmt.Fprintf(w, "  P%-5v %d\n", p, s.Percentiles[p])
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Samples above %v: %d (%.3f%%)\n", above, slow, 100*float64(slow)/float64(s.Count))
}

// replayWindows prints min, max and mean per window of size samples, like
// canlat does live. A trailing partial window is not reported.
func replayWindows(w io.Writer, samples []int64, size int) {
	fmt.Fprintln(w, "min\tmax\tavg\trunning")
	var total int64
	for start := 0; start+size <= len(samples); start += size {
		win := samples[start : start+size]
		s := summarize(win)
		for _, ns := range win {
			total += ns
		}
		running := total / int64(start+size)
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", s.Min, s.Max, s.Mean, running)
	}
}
