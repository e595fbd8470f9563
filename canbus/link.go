package canbus

import (
	"math/rand"
	"sync"
	"time"
)

// LinkConfig describes the transit model of a VirtualBus.
type LinkConfig struct {
	Delay   time.Duration // Base propagation delay applied to every frame
	Jitter  time.Duration // Uniform jitter in [-Jitter, +Jitter]
	Bitrate int           // Nominal bus bitrate in bit/s (0 = no serialization time)
	Seed    int64         // Random seed for jitter (0 = use current time)
}

// link computes when a frame put on the bus becomes visible to the other
// nodes. The bus carries one frame at a time: a frame sent while another is
// still on the wire waits for it, and frames are never reordered.
type link struct {
	config LinkConfig

	mu         sync.Mutex
	rng        *rand.Rand
	wireFreeAt time.Time // When the wire becomes free
	lastDue    time.Time
}

func newLink(cfg LinkConfig) *link {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &link{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// frameBits returns the on-wire length of f in bits, including worst-case
// bit stuffing.
func frameBits(f Frame) int {
	n := int(f.Length)
	if f.IsRemote {
		n = 0
	}
	if f.IsExtended {
		// 67 fixed bits, 54 of them subject to stuffing
		return 67 + 8*n + (54+8*n-1)/4
	}
	// 47 fixed bits, 34 of them subject to stuffing
	return 47 + 8*n + (34+8*n-1)/4
}

// frameTime returns how long f occupies the wire.
func (l *link) frameTime(f Frame) time.Duration {
	if l.config.Bitrate <= 0 {
		return 0
	}
	return time.Duration(int64(frameBits(f)) * int64(time.Second) / int64(l.config.Bitrate))
}

// randomJitter returns a random duration in [-jitter, +jitter]. l.mu must be
// held.
func (l *link) randomJitter() time.Duration {
	if l.config.Jitter <= 0 {
		return 0
	}
	jitterRange := int64(l.config.Jitter) * 2
	return time.Duration(l.rng.Int63n(jitterRange+1)) - l.config.Jitter
}

// transit reserves the wire for f, sent at now, and returns how long after
// now the frame is delivered.
func (l *link) transit(now time.Time, f Frame) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.wireFreeAt) {
		l.wireFreeAt = now
	}
	l.wireFreeAt = l.wireFreeAt.Add(l.frameTime(f))

	delay := l.config.Delay + l.randomJitter()
	if delay < 0 {
		delay = 0
	}
	due := l.wireFreeAt.Add(delay)
	if due.Before(l.lastDue) {
		due = l.lastDue
	}
	l.lastDue = due
	return due.Sub(now)
}
