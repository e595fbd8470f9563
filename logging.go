//go:build !windows
// +build !windows

package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

// logger writes human-readable diagnostics to stderr. Measurement output
// (interface lines, reports, the exit marker) goes to stdout instead, so the
// two can be separated with shell redirection.
var logger = &log.Logger{
	Handler: cli.New(os.Stderr),
	Level:   log.InfoLevel,
}

func setVerbose(verbose bool) {
	if verbose {
		logger.Level = log.DebugLevel
	} else {
		logger.Level = log.InfoLevel
	}
}
