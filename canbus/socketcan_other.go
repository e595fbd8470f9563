//go:build !linux

package canbus

// Open always fails: SocketCAN only exists on Linux. Use a VirtualBus instead.
func Open(name string, opts Options) (Channel, error) {
	return nil, &OpError{Op: OpOpen, Iface: name, Err: ErrUnsupported}
}
