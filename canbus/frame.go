package canbus

import (
	"encoding/binary"
	"fmt"

	"go.einride.tech/can"
)

// Frame is a classic CAN frame.
type Frame = can.Frame

// Probe frame content. Only timing matters, so it never changes.
const (
	ProbeID      uint32 = 0x00f
	ProbePayload byte   = 0xff
)

// Linux struct can_frame layout.
const (
	frameSize = 16
	dataOff   = 8

	effFlag = 0x80000000
	rtrFlag = 0x40000000
	effMask = 0x1fffffff
	sffMask = 0x000007ff
)

var probeFrame = mustValid(Frame{
	ID:     ProbeID,
	Length: 1,
	Data:   can.Data{ProbePayload},
})

// ProbeFrame returns the fixed frame emitted on every tick.
func ProbeFrame() Frame {
	return probeFrame
}

func mustValid(f Frame) Frame {
	if err := f.Validate(); err != nil {
		panic(fmt.Sprintf("canbus: invalid frame %v: %v", f, err))
	}
	return f
}

// marshalFrame encodes f into b using the host-endian struct can_frame layout.
func marshalFrame(f Frame, b *[frameSize]byte) {
	id := f.ID
	if f.IsExtended {
		id = id&effMask | effFlag
	} else {
		id &= sffMask
	}
	if f.IsRemote {
		id |= rtrFlag
	}
	binary.NativeEndian.PutUint32(b[0:4], id)
	b[4] = f.Length
	b[5], b[6], b[7] = 0, 0, 0
	copy(b[dataOff:], f.Data[:])
}

// unmarshalFrame decodes a struct can_frame into f.
func unmarshalFrame(b []byte, f *Frame) error {
	if len(b) < frameSize {
		return fmt.Errorf("short frame: %d bytes", len(b))
	}
	id := binary.NativeEndian.Uint32(b[0:4])
	f.IsExtended = id&effFlag != 0
	f.IsRemote = id&rtrFlag != 0
	if f.IsExtended {
		f.ID = id & effMask
	} else {
		f.ID = id & sffMask
	}
	f.Length = b[4]
	if f.Length > 8 {
		return fmt.Errorf("invalid frame length %d", f.Length)
	}
	copy(f.Data[:], b[dataOff:frameSize])
	return nil
}
