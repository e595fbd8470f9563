//go:build ignore

// genman generates the canlat man page.
// Usage: go run cmd/genman/main.go > canlat.1
package main

import (
	"fmt"
	"os"
)

func main() {
	// Use a fixed date for reproducible builds/CI
	date := "October 2026"

	manpage := fmt.Sprintf(`.TH CANLAT 1 "%s" "canlat 0.1.0" "User Commands"
.SH NAME
canlat \- measure CAN bus round-trip latency
.SH SYNOPSIS
.B canlat
[\fIflags\fR] \fIsend-interface\fR \fIreceive-interface\fR
.SH DESCRIPTION
.B canlat
emits a fixed probe frame (identifier 0x00F, one data byte 0xFF) on
\fIsend-interface\fR once per period and waits for it to appear on
\fIreceive-interface\fR. The time between emission and reception, taken
from the monotonic clock, is one round-trip sample.
.PP
At most one probe is in flight. A tick that finds the previous probe still
outstanding is skipped, so the effective probe rate drops when the round
trip is longer than the period.
.PP
Samples are summarized in windows. Each completed window prints one line
with the minimum, maximum and mean of the window and the mean since start,
all in nanoseconds.
.SH OPTIONS
.TP
.BR \-p ", " \-\-period " \fIduration\fR"
Sender tick period (default 1ms).
.TP
.BR \-w ", " \-\-window " \fIn\fR"
Samples per report line (default 1000).
.TP
.BR \-t ", " \-\-trace " \fIn\fR"
Record the first \fIn\fR raw samples, write them to the trace file and stop.
.TP
.BR \-o ", " \-\-trace\-file " \fIpath\fR"
Trace output file (default stats.txt). One decimal nanosecond value per line.
.TP
.B \-\-priority \fIn\fR
SCHED_FIFO priority of the sender and receiver threads (default 80).
Failure to obtain it is logged and ignored.
.TP
.B \-\-no\-realtime
Do not request realtime scheduling.
.TP
.B \-\-recv\-timeout \fIduration\fR
Upper bound of one blocking read, and of shutdown latency (default 100ms).
.TP
.B \-\-memoryless
Space probes with exponentially distributed intervals whose mean is the period.
.TP
.BR \-d ", " \-\-duration " \fIduration\fR"
Stop after this long.
.TP
.B \-\-metrics\-addr \fIaddr\fR
Serve Prometheus metrics on \fIaddr\fR at /metrics.
.TP
.B \-\-virtual
Use an in-process virtual bus instead of SocketCAN.
.TP
.B \-\-virtual\-delay \fIduration\fR, \-\-virtual\-jitter \fIduration\fR, \-\-virtual\-bitrate \fIbps\fR
Transit model of the virtual bus.
.TP
.B \-\-profile \fIname\fR
Use a preset. See \fBPROFILES\fR.
.TP
.BR \-L ", " \-\-list\-profiles
List available profiles.
.TP
.BR \-v ", " \-\-verbose
Debug logging.
.TP
.BR \-h ", " \-\-help
Show help message.
.TP
.B \-\-version
Show version information.
.SH OUTPUT
stdout carries one "\fIname\fR at index \fIn\fR" line per opened interface,
the header line, one report line per window and finally the line
.BR exit .
Diagnostics go to stderr.
.SH PROFILES
.TP
.B default
1ms period, windows of 1000.
.TP
.B legacy
10ms period, windows of 100.
.TP
.B fast
250us period, windows of 4000.
.TP
.B poisson
Memoryless probing with a 1ms mean.
.TP
.B sim\-500k
Virtual 500 kbit/s bus with 20us +/- 5us transceiver delay.
.TP
.B trace\-10k
Record 10000 samples and stop.
.SH EXAMPLES
Two interfaces wired to the same bus:
.PP
.RS
.nf
canlat can0 can1
.fi
.RE
.PP
Record a trace and analyze it:
.PP
.RS
.nf
canlat \-\-trace 100000 \-o trace.txt can0 can1
go run ./cmd/tracestat \-w 1000 trace.txt
.fi
.RE
.SH EXIT STATUS
0 on interrupt, timeout or a full trace; 1 on usage, configuration or
interface errors; 2 when a send or receive fails during measurement.
.SH ENVIRONMENT
.TP
.B CANLAT_PERIOD, CANLAT_WINDOW, CANLAT_TRACE, CANLAT_TRACE_FILE, CANLAT_PRIORITY, CANLAT_METRICS_ADDR
Defaults for the corresponding flags. Flags take precedence.
.SH NOTES
.IP \(bu 2
A lost probe frame stalls measurement: no further probe is sent until one
arrives.
.IP \(bu 2
Realtime priority needs CAP_SYS_NICE or a suitable RLIMIT_RTPRIO.
.SH SEE ALSO
.BR candump (1),
.BR cangen (1),
.BR ip (8)
`, date)

	fmt.Fprint(os.Stdout, manpage)
}
