package sim

import (
	"time"

	"github.com/sparques/softuart"
)

// Probe is a receive-only UART on a wire nothing else drives, for injecting
// frames and noise that a transmitter would never produce.
type Probe struct {
	Clock *Clock
	Wire  *Wire
	UART  *softuart.UART
}

// NewProbe builds and starts a probe at baud.
func NewProbe(baud int) (*Probe, error) {
	clock := NewClock()
	wire := NewWire(clock)
	u, err := softuart.New(softuart.Config{Baud: baud, RX: wire, Clock: clock})
	if err != nil {
		return nil, err
	}
	if err := u.Start(); err != nil {
		return nil, err
	}
	return &Probe{Clock: clock, Wire: wire, UART: u}, nil
}

// settle runs the clock past one frame plus a bit of idle line.
func (p *Probe) settle() {
	p.Clock.Advance((softuart.FrameBits + 1) * p.UART.Period())
}

// Inject plays f onto the line and returns the byte received, if any.
func (p *Probe) Inject(f softuart.Frame) (byte, bool) {
	p.Wire.Drive(f, p.UART.Period())
	p.settle()
	b, err := p.UART.ReadByte()
	return b, err == nil
}

// Glitch pulls the line low for d and reports whether a byte came out of it.
func (p *Probe) Glitch(d time.Duration) (byte, bool) {
	p.Wire.Pulse(d)
	p.settle()
	b, err := p.UART.ReadByte()
	return b, err == nil
}
