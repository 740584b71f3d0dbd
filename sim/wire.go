package sim

import (
	"time"

	"github.com/sparques/softuart"
)

// Transition is a change of line level.
type Transition struct {
	At   time.Duration
	High bool
}

// Wire is one serial line. It implements softuart.OutputPin and
// softuart.InputPin, so a transmitter and a receiver sharing a Wire form a
// loopback. The line starts high.
type Wire struct {
	clock   *Clock
	low     bool
	handler func()
	trace   []Transition
}

var (
	_ softuart.OutputPin = (*Wire)(nil)
	_ softuart.InputPin  = (*Wire)(nil)
)

// NewWire returns an idle wire timed by clock.
func NewWire(clock *Clock) *Wire {
	return &Wire{clock: clock}
}

// Set drives the line. A high-to-low change calls the falling edge handler
// before Set returns.
func (w *Wire) Set(high bool) {
	if high == !w.low {
		return
	}
	w.low = !high
	w.trace = append(w.trace, Transition{At: w.clock.Now(), High: high})
	if !high && w.handler != nil {
		w.handler()
	}
}

// Get reads the line.
func (w *Wire) Get() bool {
	return !w.low
}

// SetFallingInterrupt implements softuart.InputPin.
func (w *Wire) SetFallingInterrupt(handler func()) error {
	w.handler = handler
	return nil
}

// Trace returns every transition since the wire was created or last reset.
func (w *Wire) Trace() []Transition {
	return w.trace
}

// ResetTrace forgets recorded transitions.
func (w *Wire) ResetTrace() {
	w.trace = nil
}

// LevelAt returns the recorded level at t. The line is high before the first
// transition.
func (w *Wire) LevelAt(t time.Duration) bool {
	high := true
	for _, tr := range w.trace {
		if tr.At > t {
			break
		}
		high = tr.High
	}
	return high
}

// Pulse pulls the line low now and releases it after d.
func (w *Wire) Pulse(d time.Duration) {
	w.Set(false)
	w.clock.schedule(d, func() { w.Set(true) })
}

// Drive plays f onto the line starting now, one bit per period, and returns
// the line high after the last bit.
func (w *Wire) Drive(f softuart.Frame, period time.Duration) {
	w.Set(f[0])
	for i := 1; i < len(f); i++ {
		level := f[i]
		w.clock.schedule(time.Duration(i)*period, func() { w.Set(level) })
	}
	w.clock.schedule(time.Duration(len(f))*period, func() { w.Set(true) })
}

// Decode reads frames back out of the trace by sampling every bit in the
// middle of its cell, starting at each falling edge found while idle. Frames
// that are cut off by the end of the trace are not returned.
func (w *Wire) Decode(period time.Duration) []softuart.Frame {
	var frames []softuart.Frame
	end := w.clock.Now()
	idleFrom := time.Duration(-1)
	for _, tr := range w.trace {
		if tr.High || tr.At < idleFrom {
			continue
		}
		start := tr.At
		last := start + time.Duration(softuart.FrameBits-1)*period + period/2
		if last > end {
			break
		}
		var f softuart.Frame
		for i := range f {
			f[i] = w.LevelAt(start + time.Duration(i)*period + period/2)
		}
		frames = append(frames, f)
		idleFrom = last
	}
	return frames
}
