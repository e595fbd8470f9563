// Package canbus provides the bus endpoints used by canlat: raw SocketCAN
// sockets on Linux and an in-process virtual bus for tests and dry runs.
package canbus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultReceiveTimeout bounds a single blocking read. Receive re-checks its
// context after every timeout, so this is also the worst-case shutdown delay.
const DefaultReceiveTimeout = 100 * time.Millisecond

var (
	// ErrClosed is returned by operations on a closed Channel.
	ErrClosed = errors.New("canbus: channel closed")

	// ErrUnsupported is returned by Open on platforms without SocketCAN.
	ErrUnsupported = errors.New("canbus: SocketCAN is not supported on this platform")
)

// Op names the channel operation that failed.
type Op string

const (
	OpOpen    Op = "open"
	OpBind    Op = "bind"
	OpSend    Op = "send"
	OpReceive Op = "receive"
)

// OpError describes a failed channel operation and the interface it was
// performed on.
type OpError struct {
	Op    Op
	Iface string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Iface, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Options configures a Channel at open time.
type Options struct {
	// ReceiveTimeout bounds each blocking read (0 = DefaultReceiveTimeout).
	ReceiveTimeout time.Duration

	// IDs restricts received frames to these standard identifiers.
	// A nil slice accepts every frame.
	IDs []uint32

	// SendOnly drops every incoming frame. Used for the emitting endpoint,
	// whose receive queue would otherwise fill with bus traffic nobody reads.
	SendOnly bool
}

func (o Options) receiveTimeout() time.Duration {
	if o.ReceiveTimeout <= 0 {
		return DefaultReceiveTimeout
	}
	return o.ReceiveTimeout
}

func (o Options) accepts(id uint32) bool {
	if o.SendOnly {
		return false
	}
	if o.IDs == nil {
		return true
	}
	for _, want := range o.IDs {
		if want == id {
			return true
		}
	}
	return false
}

// Channel is a bound endpoint on one bus interface.
type Channel interface {
	// Name is the interface name the channel is bound to.
	Name() string

	// Index is the kernel (or virtual) interface index.
	Index() int

	// Send emits one frame.
	Send(f Frame) error

	// Receive blocks until a frame arrives, ctx is done or the channel is
	// closed. When ctx is done it returns ctx.Err().
	Receive(ctx context.Context, f *Frame) error

	// Close releases the endpoint.
	Close() error
}
