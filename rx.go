package softuart

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// RxState is the state of the receive state machine.
type RxState uint32

const (
	RxIdle RxState = iota
	RxStart
	RxData
	RxStop
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "idle"
	case RxStart:
		return "start"
	case RxData:
		return "data"
	case RxStop:
		return "stop"
	}
	return "unknown"
}

// Receiver decodes frames from an InputPin.
//
// It is dormant until a falling edge. The edge interrupt schedules a one-shot
// alarm half a bit period later; if the line is still low the alarm starts a
// periodic sampler that reads the data and stop bits in the middle of their
// cells and then cancels itself.
//
// A completed byte is held in a single buffer until ReadByte takes it. The
// next start edge clears it whether it was read or not; that loss is counted
// in Stats.RxOverruns. A frame whose stop bit reads low is dropped and counted
// in Stats.RxFramingErrors.
type Receiver struct {
	// Yield runs between polls in ReadByteContext. It defaults to
	// runtime.Gosched.
	Yield func()

	pin     InputPin
	clock   Clock
	period  time.Duration
	started bool

	// set by the confirmation alarm, cleared by the sampling tick
	sampler Ticker

	state atomic.Uint32
	buf   atomic.Uint32
	bit   atomic.Uint32
	ready atomic.Bool

	stats rxCounters
}

// NewReceiver returns a stopped receiver.
func NewReceiver(pin InputPin, clock Clock, period time.Duration) *Receiver {
	return &Receiver{
		Yield:  runtime.Gosched,
		pin:    pin,
		clock:  clock,
		period: period,
	}
}

// Start subscribes to falling edges on the receive pin.
func (rx *Receiver) Start() error {
	if rx.started {
		return nil
	}
	rx.state.Store(uint32(RxIdle))
	if err := rx.pin.SetFallingInterrupt(rx.handleEdge); err != nil {
		return err
	}
	rx.started = true
	return nil
}

// Stop disables the edge interrupt and abandons any frame in progress. A byte
// that is already ready stays readable.
func (rx *Receiver) Stop() error {
	if !rx.started {
		return nil
	}
	rx.started = false
	err := rx.pin.SetFallingInterrupt(nil)
	rx.stopSampling()
	rx.state.Store(uint32(RxIdle))
	return err
}

// handleEdge runs on every falling edge of the receive pin.
func (rx *Receiver) handleEdge() {
	// ignore edges mid-frame and stale interrupts where the line is back high
	if RxState(rx.state.Load()) != RxIdle || rx.pin.Get() {
		return
	}
	rx.bit.Store(0)
	rx.buf.Store(0)
	if rx.ready.Swap(false) {
		rx.stats.overruns.Add(1)
	}
	rx.state.Store(uint32(RxStart))
	rx.clock.After(rx.period/2, rx.confirmStart)
}

// confirmStart runs half a bit period after the start edge.
func (rx *Receiver) confirmStart() {
	if RxState(rx.state.Load()) != RxStart {
		// stopped while the alarm was pending
		return
	}
	if rx.pin.Get() {
		rx.state.Store(uint32(RxIdle))
		rx.stats.glitches.Add(1)
		return
	}
	rx.state.Store(uint32(RxData))
	rx.sampler = rx.clock.Every(rx.period, rx.Tick)
}

// Tick samples the line once. It is driven by the sampler armed in
// confirmStart and is a no-op while the receiver is idle.
func (rx *Receiver) Tick() {
	switch RxState(rx.state.Load()) {
	case RxIdle:
	case RxStart:
		if rx.pin.Get() {
			rx.state.Store(uint32(RxIdle))
			rx.stats.glitches.Add(1)
			rx.stopSampling()
			return
		}
		rx.bit.Store(0)
		rx.state.Store(uint32(RxData))
	case RxData:
		bit := rx.bit.Load()
		var v uint32
		if rx.pin.Get() {
			v = 1
		}
		rx.buf.Store(rx.buf.Load() | v<<bit)
		bit++
		rx.bit.Store(bit)
		if bit >= DataBits {
			rx.state.Store(uint32(RxStop))
		}
	case RxStop:
		if rx.pin.Get() {
			rx.ready.Store(true)
			rx.stats.frames.Add(1)
		} else {
			rx.stats.framingErrors.Add(1)
		}
		rx.state.Store(uint32(RxIdle))
		rx.stopSampling()
	}
}

func (rx *Receiver) stopSampling() {
	if rx.sampler == nil {
		return
	}
	rx.sampler.Stop()
	rx.sampler = nil
}

// State returns the current state.
func (rx *Receiver) State() RxState {
	return RxState(rx.state.Load())
}

// Ready reports whether a completed byte is waiting.
func (rx *Receiver) Ready() bool {
	return rx.ready.Load()
}

// Buffered returns 1 if a byte is waiting and 0 otherwise.
func (rx *Receiver) Buffered() int {
	if rx.ready.Load() {
		return 1
	}
	return 0
}

// ReadByte takes the waiting byte and clears the ready flag. It returns
// ErrNoData if there is none.
func (rx *Receiver) ReadByte() (byte, error) {
	if !rx.ready.Load() {
		return 0, ErrNoData
	}
	b := byte(rx.buf.Load())
	// a start edge between the two loads re-arms the receiver and clears
	// ready, in which case b may be a partial frame
	if !rx.ready.CompareAndSwap(true, false) {
		return 0, ErrNoData
	}
	return b, nil
}

// ReadByteContext waits for a byte or for ctx to be done.
func (rx *Receiver) ReadByteContext(ctx context.Context) (byte, error) {
	for {
		b, err := rx.ReadByte()
		if err == nil {
			return b, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if rx.Yield != nil {
			rx.Yield()
		}
	}
}

// Read implements io.Reader without blocking. It copies at most one byte and
// returns 0, nil when nothing is waiting, which io.ReadFull and bufio treat as
// no progress. Use ReadByteContext to wait for a byte.
func (rx *Receiver) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := rx.ReadByte()
	if err != nil {
		return 0, nil
	}
	p[0] = b
	return 1, nil
}
