package canbus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// virtualQueueLen matches the order of magnitude of a default SocketCAN
// receive queue. Frames arriving at a full queue are dropped.
const virtualQueueLen = 64

// VirtualBus is an in-process CAN segment. A frame sent on one channel is
// delivered to every other open channel on the bus, like a vcan interface
// with local loopback enabled.
type VirtualBus struct {
	link *link

	mu      sync.Mutex
	ports   map[*virtualChannel]struct{}
	indexes map[string]int
}

// NewVirtualBus creates a bus that delivers each frame after delay.
func NewVirtualBus(delay time.Duration) *VirtualBus {
	return NewShapedBus(LinkConfig{Delay: delay})
}

// NewShapedBus creates a bus whose frames are delayed according to cfg.
func NewShapedBus(cfg LinkConfig) *VirtualBus {
	return &VirtualBus{
		link:    newLink(cfg),
		ports:   make(map[*virtualChannel]struct{}),
		indexes: make(map[string]int),
	}
}

// Open attaches a new channel named name to the bus. Channels opened with
// the same name share an index, as sockets bound to one interface would.
func (b *VirtualBus) Open(name string, opts Options) (Channel, error) {
	if name == "" {
		return nil, &OpError{Op: OpOpen, Iface: name, Err: errors.New("empty interface name")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	index, ok := b.indexes[name]
	if !ok {
		index = len(b.indexes) + 1
		b.indexes[name] = index
	}
	c := &virtualChannel{
		bus:    b,
		name:   name,
		index:  index,
		opts:   opts,
		rx:     make(chan Frame, virtualQueueLen),
		closed: make(chan struct{}),
	}
	b.ports[c] = struct{}{}
	return c, nil
}

func (b *VirtualBus) deliver(from *virtualChannel, f Frame) {
	d := b.link.transit(time.Now(), f)

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.ports {
		if c == from || !c.opts.accepts(f.ID) {
			continue
		}
		if d <= 0 {
			c.push(f)
			continue
		}
		dst := c
		time.AfterFunc(d, func() { dst.push(f) })
	}
}

func (b *VirtualBus) detach(c *virtualChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.ports, c)
}

type virtualChannel struct {
	bus   *VirtualBus
	name  string
	index int
	opts  Options

	rx        chan Frame
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *virtualChannel) Name() string { return c.name }

func (c *virtualChannel) Index() int { return c.index }

func (c *virtualChannel) Send(f Frame) error {
	select {
	case <-c.closed:
		return &OpError{Op: OpSend, Iface: c.name, Err: ErrClosed}
	default:
	}
	c.bus.deliver(c, f)
	return nil
}

func (c *virtualChannel) Receive(ctx context.Context, f *Frame) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return &OpError{Op: OpReceive, Iface: c.name, Err: ErrClosed}
	case fr := <-c.rx:
		*f = fr
		return nil
	}
}

// push enqueues without blocking; a full queue drops the frame.
func (c *virtualChannel) push(f Frame) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.rx <- f:
	default:
	}
}

func (c *virtualChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.bus.detach(c)
	})
	return nil
}
