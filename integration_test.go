//go:build !windows
// +build !windows

package main

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
)

// buildBinary compiles canlat into a temporary directory.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build in short mode")
	}
	binPath := filepath.Join(t.TempDir(), "canlat_bin")
	buildCmd := exec.Command("go", "build", "-o", binPath, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build canlat binary: %v\n%s", err, string(out))
	}
	return binPath
}

// runWithTimeout runs cmd and kills it if it does not finish in time.
func runWithTimeout(t *testing.T, cmd *exec.Cmd, timeout time.Duration) error {
	t.Helper()
	if err := cmd.Start(); err != nil {
		t.Fatalf("start canlat: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		<-done
		t.Fatalf("timeout waiting for canlat to finish")
		return nil
	}
}

// TestUsageExit verifies that missing interfaces print usage on stderr, the
// exit marker on stdout, and exit with status 1.
func TestUsageExit(t *testing.T) {
	binPath := buildBinary(t)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(binPath, "can0")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := runWithTimeout(t, cmd, 5*time.Second)

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != exitFailure {
		t.Fatalf("expected exit status %d, got %v", exitFailure, err)
	}
	if stdout.String() != "exit\n" {
		t.Errorf("stdout: got %q, want %q", stdout.String(), "exit\n")
	}
	if !strings.Contains(stderr.String(), "Usage: canlat") {
		t.Errorf("usage missing from stderr: %q", stderr.String())
	}
}

// TestExitMarkerOnEveryPath verifies that configuration errors and the
// informational flags also end stdout with the exit marker.
func TestExitMarkerOnEveryPath(t *testing.T) {
	binPath := buildBinary(t)

	tests := []struct {
		name   string
		args   []string
		status int
		stdout string
	}{
		{"invalid window", []string{"--window", "0", "a", "b"}, exitFailure, "exit\n"},
		{"unknown flag", []string{"--bogus", "a", "b"}, exitFailure, "exit\n"},
		{"unknown profile", []string{"--profile", "nope", "a", "b"}, exitFailure, "exit\n"},
		{"trace too large", []string{"--trace", "4000000000", "a", "b"}, exitFailure, "exit\n"},
		{"help", []string{"--help"}, exitOK, "exit\n"},
		{"version", []string{"--version"}, exitOK, "canlat " + version + "\nexit\n"},
	}
	for _, tt := range tests {
		var stdout, stderr bytes.Buffer
		cmd := exec.Command(binPath, tt.args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err := runWithTimeout(t, cmd, 5*time.Second)

		status := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		} else if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if status != tt.status {
			t.Errorf("%s: exit status %d, want %d (stderr %q)", tt.name, status, tt.status, stderr.String())
		}
		if stdout.String() != tt.stdout {
			t.Errorf("%s: stdout %q, want %q", tt.name, stdout.String(), tt.stdout)
		}
	}
}

// TestTerminalOutput runs a short virtual session with stdout on a PTY and
// checks that every line reaches the terminal.
func TestTerminalOutput(t *testing.T) {
	binPath := buildBinary(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("open pty: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	trace := filepath.Join(t.TempDir(), "stats.txt")
	cmd := exec.Command(binPath, "--virtual", "--no-realtime", "-w", "5", "-t", "20", "-o", trace, "sim0", "sim0")
	cmd.Stdout = slave
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// Drain the master side so the child never blocks on a full PTY.
	var output bytes.Buffer
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(&output, master)
	}()

	if err := runWithTimeout(t, cmd, 10*time.Second); err != nil {
		t.Fatalf("canlat failed: %v\n%s", err, stderr.String())
	}
	// Closing the slave ends the copy once the child has exited.
	slave.Close()
	select {
	case <-copied:
	case <-time.After(time.Second):
		master.Close()
		<-copied
	}

	// The terminal line discipline turns \n into \r\n.
	got := strings.ReplaceAll(output.String(), "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3+4+1 {
		t.Fatalf("got %d lines, want 8 (2 interfaces, header, 4 reports, exit): %q", len(lines), lines)
	}
	if lines[2] != reportHeader {
		t.Errorf("header: got %q", lines[2])
	}
	if lines[len(lines)-1] != "exit" {
		t.Errorf("last line: got %q, want exit", lines[len(lines)-1])
	}
}
