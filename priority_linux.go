//go:build linux

package main

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// elevatePriority locks the calling goroutine to its OS thread and moves
// that thread to SCHED_FIFO at prio. The goroutine must not unlock the
// thread afterwards: when it exits, the runtime discards the elevated thread
// instead of returning it to the scheduler pool.
func elevatePriority(prio int) error {
	runtime.LockOSThread()
	attr := unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
