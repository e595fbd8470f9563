//go:build linux

package canbus

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// socketChannel is a raw SocketCAN socket bound to one interface.
type socketChannel struct {
	name  string
	index int
	fd    int

	mu     sync.Mutex
	closed bool
}

// Open creates a raw CAN socket, resolves name to an interface index and
// binds the socket to it. Failures are reported as *OpError with Op set to
// OpOpen (socket or index resolution) or OpBind.
func Open(name string, opts Options) (Channel, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, &OpError{Op: OpOpen, Iface: name, Err: err}
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, &OpError{Op: OpOpen, Iface: name, Err: err}
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFINDEX, ifr); err != nil {
		unix.Close(fd)
		return nil, &OpError{Op: OpOpen, Iface: name, Err: err}
	}
	index := int(ifr.Uint32())

	if err := configureSocket(fd, opts); err != nil {
		unix.Close(fd)
		return nil, &OpError{Op: OpOpen, Iface: name, Err: err}
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: index}); err != nil {
		unix.Close(fd)
		return nil, &OpError{Op: OpBind, Iface: name, Err: err}
	}

	return &socketChannel{name: name, index: index, fd: fd}, nil
}

// configureSocket installs the receive filter and read timeout.
func configureSocket(fd int, opts Options) error {
	switch {
	case opts.SendOnly:
		// An empty filter list makes the kernel deliver nothing.
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, nil); err != nil {
			return err
		}
	case opts.IDs != nil:
		filters := make([]unix.CanFilter, 0, len(opts.IDs))
		for _, id := range opts.IDs {
			filters = append(filters, unix.CanFilter{Id: id, Mask: unix.CAN_SFF_MASK | unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG})
		}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters); err != nil {
			return err
		}
	}

	tv := unix.NsecToTimeval(opts.receiveTimeout().Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func (c *socketChannel) Name() string { return c.name }

func (c *socketChannel) Index() int { return c.index }

func (c *socketChannel) Send(f Frame) error {
	var buf [frameSize]byte
	marshalFrame(f, &buf)
	for {
		_, err := unix.Write(c.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &OpError{Op: OpSend, Iface: c.name, Err: c.mapClosed(err)}
		}
		return nil
	}
}

// Receive reads one frame. SO_RCVTIMEO makes each read return EAGAIN after
// the receive timeout, at which point ctx is checked again.
func (c *socketChannel) Receive(ctx context.Context, f *Frame) error {
	var buf [frameSize]byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Read(c.fd, buf[:])
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			continue
		case err != nil:
			return &OpError{Op: OpReceive, Iface: c.name, Err: c.mapClosed(err)}
		}
		if err := unmarshalFrame(buf[:n], f); err != nil {
			return &OpError{Op: OpReceive, Iface: c.name, Err: err}
		}
		return nil
	}
}

func (c *socketChannel) mapClosed(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed && errors.Is(err, unix.EBADF) {
		return ErrClosed
	}
	return err
}

func (c *socketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}
