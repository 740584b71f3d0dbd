package sim

import (
	"errors"
	"time"

	"github.com/sparques/softuart"
)

// ErrNoFrame is returned by RoundTrip when nothing was received within two
// frame times.
var ErrNoFrame = errors.New("sim: no frame received")

// Loopback is a started UART whose TX pin is wired to its own RX pin.
// Blocking writes advance the virtual clock instead of spinning.
type Loopback struct {
	Clock *Clock
	Wire  *Wire
	UART  *softuart.UART
}

// NewLoopback builds and starts a loopback UART at baud.
func NewLoopback(baud int) (*Loopback, error) {
	clock := NewClock()
	wire := NewWire(clock)
	u, err := softuart.New(softuart.Config{
		Baud:  baud,
		TX:    wire,
		RX:    wire,
		Clock: clock,
	})
	if err != nil {
		return nil, err
	}
	u.SetYield(func() { clock.Step() })
	if err := u.Start(); err != nil {
		return nil, err
	}
	return &Loopback{Clock: clock, Wire: wire, UART: u}, nil
}

// FrameTime returns the duration of one character on the line.
func (l *Loopback) FrameTime() time.Duration {
	return softuart.FrameBits * l.UART.Period()
}

// RoundTrip sends b and returns what the receiver made of it.
func (l *Loopback) RoundTrip(b byte) (byte, error) {
	if err := l.UART.WriteByte(b); err != nil {
		return 0, err
	}
	if !l.Clock.RunUntil(l.UART.Rx.Ready, 2*l.FrameTime()) {
		return 0, ErrNoFrame
	}
	return l.UART.ReadByte()
}

// Send writes p and runs the clock until the last frame has been received or
// dropped. It returns every byte received on the way.
func (l *Loopback) Send(p []byte) ([]byte, error) {
	var got []byte
	collect := func() {
		if b, err := l.UART.ReadByte(); err == nil {
			got = append(got, b)
		}
	}
	for _, c := range p {
		for l.UART.Tx.Busy() {
			collect()
			l.Clock.Step()
		}
		collect()
		if err := l.UART.WriteByte(c); err != nil {
			return got, err
		}
	}
	end := l.Clock.Now() + 2*l.FrameTime()
	for l.Clock.Now() < end {
		collect()
		if !l.Clock.Step() {
			break
		}
	}
	collect()
	return got, nil
}
