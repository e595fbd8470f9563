//go:build !linux && !windows
// +build !linux,!windows

package main

import "errors"

func elevatePriority(prio int) error {
	return errors.New("realtime scheduling is not supported on this platform")
}
