//go:build tinygo

/*
Package carrier keys an infrared carrier with a softuart transmit line, for a
UART over IR.

Common 38kHz demodulating IR receivers idle high and pull their output low
while they see the carrier. Turning the carrier on for a space (low) and off
for a mark (high) therefore reproduces the UART line at the receiver's output,
which can be fed straight to a softuart receive pin.

Demodulators need a burst of several carrier cycles before they react and
stretch or shorten pulses by a few cycles, so keep the baud rate low:
2400 baud gives about 16 cycles per bit at 38kHz.

## Example

	const ledPin, irPin = machine.GP15, machine.GP14
	line, err := carrier.New(ledPin, carrier.Freq38Khz)
	u, err := softuart.New(softuart.Config{
		Baud:  2400,
		TX:    line,
		RX:    softuart.NewGPIORx(irPin),
		Clock: softuart.NewTimerClock(),
	})
*/
package carrier

import (
	"machine"

	"github.com/sparques/pwm"
)

// Freq38Khz matches the demodulating receivers sold for IR remotes; pass it
// to New unless the receiver on the other end is tuned elsewhere.
const Freq38Khz = 38000

// Line implements softuart.OutputPin on a PWM channel.
type Line struct {
	pgroup pwm.Group
	ch     uint8
	duty   uint32
}

// New configures pin for PWM at freq and leaves the carrier off (line idle).
func New(pin machine.Pin, freq uint64) (*Line, error) {
	pin.Configure(machine.PinConfig{Mode: machine.PinPWM})
	pgroup := pwm.Get(pin)
	pgroup.Configure(machine.PWMConfig{Period: uint64(1e9) / freq})
	ch, err := pgroup.Channel(pin)
	if err != nil {
		return nil, err
	}
	l := &Line{
		pgroup: pgroup,
		ch:     ch,
		duty:   pgroup.Top() / 2,
	}
	l.Set(true)
	return l, nil
}

// Set turns the carrier off for high and on for low.
func (l *Line) Set(high bool) {
	if high {
		l.pgroup.Set(l.ch, 0)
		return
	}
	l.pgroup.Set(l.ch, l.duty)
}
