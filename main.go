//go:build !windows
// +build !windows

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/m-lab/go/warnonerror"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/cbrunnkvist/canlat/canbus"
)

var version = "0.1.0"

// exitMarker is the last line written to stdout on every exit path.
const exitMarker = "exit"

// Exit statuses
const (
	exitOK                 = 0
	exitFailure            = 1 // Usage, configuration or interface setup
	exitMeasurementFailure = 2 // Send or receive failed mid-session
)

// maxTraceCapacity bounds the preallocated trace buffer (1 GiB of samples).
const maxTraceCapacity = 1 << 27

var errUsage = errors.New("send and receive interfaces are required")

// Config holds all command-line configuration
type Config struct {
	// Interfaces
	SendIface string
	RecvIface string
	Virtual   bool // Use an in-process bus instead of SocketCAN

	// Virtual bus link model
	VirtualDelay   time.Duration
	VirtualJitter  time.Duration
	VirtualBitrate int

	// Timing
	Period      time.Duration
	Memoryless  bool
	RecvTimeout time.Duration
	Duration    time.Duration

	// Statistics and trace
	Window        int
	TraceCapacity int
	TraceFile     string

	// Scheduling
	Priority   int
	NoRealtime bool

	// Misc
	MetricsAddr  string
	Profile      string
	Verbose      bool
	Help         bool
	Version      bool
	ListProfiles bool
}

// envConfig lists the settings that may also come from the environment.
// Zero values mean "not set".
type envConfig struct {
	Period      time.Duration `env:"CANLAT_PERIOD" env-description:"Sender tick period (e.g. 1ms)"`
	Window      int           `env:"CANLAT_WINDOW" env-description:"Samples per report line"`
	Trace       int           `env:"CANLAT_TRACE" env-description:"Raw samples to record before stopping"`
	TraceFile   string        `env:"CANLAT_TRACE_FILE" env-description:"Trace output file"`
	Priority    int           `env:"CANLAT_PRIORITY" env-description:"SCHED_FIFO priority"`
	MetricsAddr string        `env:"CANLAT_METRICS_ADDR" env-description:"Prometheus metrics listen address"`
}

func defaultConfig() *Config {
	return &Config{
		Period:      DefaultPeriod,
		RecvTimeout: canbus.DefaultReceiveTimeout,
		Window:      DefaultWindow,
		TraceFile:   DefaultTraceFile,
		Priority:    DefaultPriority,
	}
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			exit(exitOK)
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "canlat: measure CAN bus round-trip latency")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: canlat [flags] <send-interface> <receive-interface>")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Run 'canlat --help' for full options.")
			exit(exitFailure)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exit(exitFailure)
	}

	if cfg.Version {
		fmt.Printf("canlat %s\n", version)
		exit(exitOK)
	}

	if cfg.ListProfiles {
		printProfiles(os.Stdout)
		exit(exitOK)
	}

	setVerbose(cfg.Verbose)
	// run prints the exit marker itself.
	os.Exit(run(cfg, os.Stdout))
}

// exit prints the exit marker and terminates with code.
func exit(code int) {
	fmt.Println(exitMarker)
	os.Exit(code)
}

func parseFlags(args []string) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("canlat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = false // Preserve definition order in help

	period := fs.DurationP("period", "p", cfg.Period, "Sender tick period")
	window := fs.IntP("window", "w", cfg.Window, "Samples per report line")
	trace := fs.IntP("trace", "t", 0, "Record this many raw samples, write them to the trace file and stop (0=off)")
	traceFile := fs.StringP("trace-file", "o", cfg.TraceFile, "Trace output file")
	priority := fs.Int("priority", cfg.Priority, "SCHED_FIFO priority of the sender and receiver threads (1-99)")
	fs.BoolVar(&cfg.NoRealtime, "no-realtime", false, "Do not request realtime scheduling")
	recvTimeout := fs.Duration("recv-timeout", cfg.RecvTimeout, "Upper bound of one blocking read, and of shutdown latency")
	memoryless := fs.Bool("memoryless", false, "Exponentially distributed ticks with --period as the mean")
	fs.DurationVarP(&cfg.Duration, "duration", "d", 0, "Stop after this long (0=until interrupted)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	virtual := fs.Bool("virtual", false, "Use an in-process virtual bus instead of SocketCAN")
	virtualDelay := fs.Duration("virtual-delay", 0, "Virtual bus propagation delay")
	virtualJitter := fs.Duration("virtual-jitter", 0, "Virtual bus delay jitter (uniform +/-)")
	virtualBitrate := fs.Int("virtual-bitrate", 0, "Virtual bus bitrate in bit/s (0=no serialization time)")
	profile := fs.String("profile", "", "Measurement profile (see --list-profiles)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Debug logging")
	fs.BoolVarP(&cfg.Help, "help", "h", false, "Show help")
	fs.BoolVar(&cfg.Version, "version", false, "Show version")
	fs.BoolVarP(&cfg.ListProfiles, "list-profiles", "L", false, "List available profiles")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "canlat - measure CAN bus round-trip latency")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Emits a fixed frame on <send-interface> every period, waits for it on")
		fmt.Fprintln(os.Stderr, "<receive-interface> and reports min/max/mean round-trip time in ns.")
		fmt.Fprintln(os.Stderr, "At most one frame is in flight; ticks that find it outstanding are skipped.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: canlat [flags] <send-interface> <receive-interface>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  canlat can0 can1")
		fmt.Fprintln(os.Stderr, "  canlat --window 100 --period 10ms vcan0 vcan0")
		fmt.Fprintln(os.Stderr, "  canlat --trace 100000 -o trace.txt can0 can1")
		fmt.Fprintln(os.Stderr, "  canlat --virtual --virtual-bitrate 500000 -d 5s sim0 sim0")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		if desc, err := cleanenv.GetDescription(&envConfig{}, nil); err == nil {
			fmt.Fprintln(os.Stderr, desc)
			fmt.Fprintln(os.Stderr, "")
		}
		fmt.Fprintln(os.Stderr, "Precedence: flags > environment > profile > defaults.")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Help {
		fs.Usage()
		return cfg, flag.ErrHelp
	}
	if cfg.Version || cfg.ListProfiles {
		return cfg, nil
	}

	// Apply profile first (can be overridden by environment and flags)
	if *profile != "" {
		p, ok := profiles[*profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile: %s", *profile)
		}
		cfg.Profile = *profile
		cfg.applyProfile(p)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if fs.Changed("period") {
		cfg.Period = *period
	}
	if fs.Changed("window") {
		cfg.Window = *window
	}
	if fs.Changed("trace") {
		cfg.TraceCapacity = *trace
	}
	if fs.Changed("trace-file") {
		cfg.TraceFile = *traceFile
	}
	if fs.Changed("priority") {
		cfg.Priority = *priority
	}
	if fs.Changed("recv-timeout") {
		cfg.RecvTimeout = *recvTimeout
	}
	if fs.Changed("memoryless") {
		cfg.Memoryless = *memoryless
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = *metricsAddr
	}
	if fs.Changed("virtual") {
		cfg.Virtual = *virtual
	}
	if fs.Changed("virtual-delay") {
		cfg.VirtualDelay = *virtualDelay
	}
	if fs.Changed("virtual-jitter") {
		cfg.VirtualJitter = *virtualJitter
	}
	if fs.Changed("virtual-bitrate") {
		cfg.VirtualBitrate = *virtualBitrate
	}

	positional := fs.Args()
	if len(positional) < 2 {
		return cfg, errUsage
	}
	cfg.SendIface, cfg.RecvIface = positional[0], positional[1]

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfile copies the non-zero settings of p.
func (c *Config) applyProfile(p Config) {
	if p.Period > 0 {
		c.Period = p.Period
	}
	if p.Window > 0 {
		c.Window = p.Window
	}
	if p.TraceCapacity > 0 {
		c.TraceCapacity = p.TraceCapacity
	}
	if p.Memoryless {
		c.Memoryless = true
	}
	if p.Virtual {
		c.Virtual = true
		c.VirtualDelay = p.VirtualDelay
		c.VirtualJitter = p.VirtualJitter
		c.VirtualBitrate = p.VirtualBitrate
	}
}

// applyEnv copies the settings present in the environment.
func (c *Config) applyEnv() error {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	if env.Period != 0 {
		c.Period = env.Period
	}
	if env.Window != 0 {
		c.Window = env.Window
	}
	if env.Trace != 0 {
		c.TraceCapacity = env.Trace
	}
	if env.TraceFile != "" {
		c.TraceFile = env.TraceFile
	}
	if env.Priority != 0 {
		c.Priority = env.Priority
	}
	if env.MetricsAddr != "" {
		c.MetricsAddr = env.MetricsAddr
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.Period <= 0:
		return fmt.Errorf("invalid --period: %v must be positive", c.Period)
	case c.Window < 1:
		return fmt.Errorf("invalid --window: %d must be at least 1", c.Window)
	case c.TraceCapacity < 0:
		return fmt.Errorf("invalid --trace: %d must not be negative", c.TraceCapacity)
	case c.TraceCapacity > maxTraceCapacity:
		return fmt.Errorf("invalid --trace: %d exceeds the limit of %d samples", c.TraceCapacity, maxTraceCapacity)
	case c.RecvTimeout <= 0:
		return fmt.Errorf("invalid --recv-timeout: %v must be positive", c.RecvTimeout)
	case c.Duration < 0:
		return fmt.Errorf("invalid --duration: %v must not be negative", c.Duration)
	case c.VirtualDelay < 0 || c.VirtualJitter < 0 || c.VirtualBitrate < 0:
		return errors.New("invalid virtual bus settings: values must not be negative")
	case !c.NoRealtime && (c.Priority < 1 || c.Priority > 99):
		return fmt.Errorf("invalid --priority: %d not in 1-99", c.Priority)
	}
	return nil
}

func (c *Config) sessionConfig() SessionConfig {
	prio := c.Priority
	if c.NoRealtime {
		prio = 0
	}
	return SessionConfig{
		Period:        c.Period,
		Memoryless:    c.Memoryless,
		Window:        c.Window,
		TraceCapacity: c.TraceCapacity,
		TraceFile:     c.TraceFile,
		Priority:      prio,
	}
}

// reportWriter buffers stdout. On a terminal every line is flushed as it is
// written; otherwise output is flushed when the buffer fills and at exit, to
// keep write syscalls off the receiver thread.
type reportWriter struct {
	w         *bufio.Writer
	lineFlush bool
}

func newReportWriter(w io.Writer) *reportWriter {
	lineFlush := false
	if f, ok := w.(*os.File); ok {
		lineFlush = term.IsTerminal(int(f.Fd()))
	}
	return &reportWriter{w: bufio.NewWriter(w), lineFlush: lineFlush}
}

func (r *reportWriter) Write(p []byte) (int, error) {
	n, err := r.w.Write(p)
	if err == nil && r.lineFlush {
		err = r.w.Flush()
	}
	return n, err
}

func (r *reportWriter) Flush() error {
	return r.w.Flush()
}

// openFunc opens one bus endpoint.
type openFunc func(name string, opts canbus.Options) (canbus.Channel, error)

// openChannels opens the send and the receive endpoint. Both are attempted
// so that every failing interface is reported; on failure nothing stays open.
func openChannels(open openFunc, cfg *Config, out io.Writer) (tx, rx canbus.Channel, err error) {
	tx, txErr := open(cfg.SendIface, canbus.Options{
		SendOnly:       true,
		ReceiveTimeout: cfg.RecvTimeout,
	})
	if txErr != nil {
		logger.WithError(txErr).WithField("iface", cfg.SendIface).Error("cannot open send interface")
	} else {
		fmt.Fprintf(out, "%s at index %d\n", tx.Name(), tx.Index())
	}

	rx, rxErr := open(cfg.RecvIface, canbus.Options{
		IDs:            []uint32{canbus.ProbeID},
		ReceiveTimeout: cfg.RecvTimeout,
	})
	if rxErr != nil {
		logger.WithError(rxErr).WithField("iface", cfg.RecvIface).Error("cannot open receive interface")
	} else {
		fmt.Fprintf(out, "%s at index %d\n", rx.Name(), rx.Index())
	}

	if txErr != nil || rxErr != nil {
		if tx != nil {
			tx.Close()
		}
		if rx != nil {
			rx.Close()
		}
		return nil, nil, errors.Join(txErr, rxErr)
	}
	return tx, rx, nil
}

// exitStatus maps a session error to the process exit status.
func exitStatus(err error) int {
	if err == nil {
		return exitOK
	}
	var opErr *canbus.OpError
	if errors.As(err, &opErr) && (opErr.Op == canbus.OpSend || opErr.Op == canbus.OpReceive) {
		return exitMeasurementFailure
	}
	return exitFailure
}

func run(cfg *Config, stdout io.Writer) int {
	out := newReportWriter(stdout)
	defer func() {
		out.Flush()
		fmt.Fprintln(stdout, exitMarker)
	}()

	var open openFunc = canbus.Open
	if cfg.Virtual {
		bus := canbus.NewShapedBus(canbus.LinkConfig{
			Delay:   cfg.VirtualDelay,
			Jitter:  cfg.VirtualJitter,
			Bitrate: cfg.VirtualBitrate,
		})
		open = bus.Open
	}

	tx, rx, err := openChannels(open, cfg, out)
	if err != nil {
		return exitFailure
	}
	defer warnonerror.Close(tx, "closing "+cfg.SendIface)
	defer warnonerror.Close(rx, "closing "+cfg.RecvIface)

	if cfg.MetricsAddr != "" {
		ms, err := startMetricsServer(cfg.MetricsAddr)
		if err != nil {
			logger.WithError(err).WithField("addr", cfg.MetricsAddr).Error("cannot serve metrics")
			return exitFailure
		}
		defer ms.Close()
		logger.WithField("addr", ms.Addr()).Info("serving metrics")
	}

	fmt.Fprintln(out, reportHeader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.Duration)
		defer stop()
	}

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	sess := NewSession(cfg.sessionConfig(), tx, rx, out)
	summary, err := sess.Run(ctx)
	logger.WithFields(log.Fields{
		"session":        sess.ID(),
		"sent":           summary.Sent,
		"received":       summary.Received,
		"skipped":        summary.Skipped,
		"reports":        summary.Reports,
		"peak_in_flight": summary.PeakInFlight,
	}).Info("session finished")

	if err != nil {
		logger.WithError(err).Error("measurement failed")
		return exitStatus(err)
	}
	return exitOK
}
