// Package softuart implements a bit-banged, full-duplex 8-N-1 UART on two
// plain GPIO pins.
//
// The transmitter is a state machine advanced by a free-running periodic
// timer, one bit per tick. The receiver sleeps until a falling edge on its
// pin, confirms the start bit with a one-shot alarm half a bit period later
// and then samples the remaining bits mid-cell with its own periodic timer.
//
// The hardware is reached only through OutputPin, InputPin and Clock, so the
// same code runs on a microcontroller (see the tinygo build-tagged files) and
// against the virtual clock in package sim.
package softuart

import (
	"errors"
	"time"
)

const (
	// DefaultBaud is used when Config.Baud is zero.
	DefaultBaud = 115200

	// DataBits is the number of data bits per frame, sent LSB first.
	DataBits = 8
	// FrameBits counts start, data and stop bits.
	FrameBits = DataBits + 2
)

var (
	// ErrBaud is returned for baud rates that do not yield a bit period of at
	// least one microsecond.
	ErrBaud = errors.New("softuart: invalid baud rate")
	// ErrNoPin is returned by New when neither TX nor RX is configured.
	ErrNoPin = errors.New("softuart: no pins configured")
	// ErrNoClock is returned by New without a Clock.
	ErrNoClock = errors.New("softuart: no clock configured")
	// ErrStopped is returned when writing to a transmitter that is not running.
	ErrStopped = errors.New("softuart: not started")
	// ErrNoData is returned by ReadByte when no completed byte is waiting.
	ErrNoData = errors.New("softuart: no data")
)

// OutputPin is the transmit line.
type OutputPin interface {
	Set(high bool)
}

// InputPin is the receive line. SetFallingInterrupt registers handler to run
// in interrupt context on every high-to-low transition; a nil handler
// disables the interrupt.
type InputPin interface {
	Get() bool
	SetFallingInterrupt(handler func()) error
}

// Ticker is a running periodic callback.
type Ticker interface {
	// Stop cancels the ticker. It may be called from inside the callback.
	Stop()
}

// Clock provides the repeating timer and one-shot alarm services. Callbacks
// run in interrupt context and must not block.
type Clock interface {
	// Every calls fn every period, the first call one period from now.
	// Periods are measured start to start so callback latency does not
	// accumulate.
	Every(period time.Duration, fn func()) Ticker
	// After calls fn once, delay from now. A later After replaces a
	// callback that has not run yet.
	After(delay time.Duration, fn func())
}

// BitPeriod returns the duration of one bit at baud, rounded to the nearest
// microsecond.
func BitPeriod(baud int) (time.Duration, error) {
	if baud <= 0 {
		return 0, ErrBaud
	}
	us := (1000000 + baud/2) / baud
	if us == 0 {
		return 0, ErrBaud
	}
	return time.Duration(us) * time.Microsecond, nil
}
