package softuart

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// TxState is the state of the transmit state machine.
type TxState uint32

const (
	TxIdle TxState = iota
	TxStart
	TxData
	TxStop
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxStart:
		return "start"
	case TxData:
		return "data"
	case TxStop:
		return "stop"
	}
	return "unknown"
}

// Transmitter drives an OutputPin one bit per tick of a periodic timer that
// runs for as long as the transmitter is started.
//
// The tick owns the state, the bit index and the busy flag's clear; the
// writer owns the byte buffer and the busy flag's set. Neither side takes a
// lock.
type Transmitter struct {
	// Yield runs between polls while a write waits for the previous frame.
	// It defaults to runtime.Gosched.
	Yield func()

	pin    OutputPin
	clock  Clock
	period time.Duration
	ticker Ticker

	state atomic.Uint32
	buf   atomic.Uint32
	bit   atomic.Uint32
	busy  atomic.Bool

	stats txCounters
}

// NewTransmitter returns a stopped transmitter. The period is normally the
// result of BitPeriod.
func NewTransmitter(pin OutputPin, clock Clock, period time.Duration) *Transmitter {
	return &Transmitter{
		Yield:  runtime.Gosched,
		pin:    pin,
		clock:  clock,
		period: period,
	}
}

// Start drives the line to idle and starts the bit timer.
func (tx *Transmitter) Start() {
	if tx.ticker != nil {
		return
	}
	tx.state.Store(uint32(TxIdle))
	tx.pin.Set(true)
	tx.ticker = tx.clock.Every(tx.period, tx.Tick)
}

// Stop cancels the bit timer. A frame in flight is abandoned and the line is
// returned to idle.
func (tx *Transmitter) Stop() {
	if tx.ticker == nil {
		return
	}
	tx.ticker.Stop()
	tx.ticker = nil
	tx.state.Store(uint32(TxIdle))
	tx.busy.Store(false)
	tx.pin.Set(true)
}

// Tick advances the state machine by one bit period.
func (tx *Transmitter) Tick() {
	switch TxState(tx.state.Load()) {
	case TxIdle:
		// hold the line idle even before the first frame
		tx.pin.Set(true)
	case TxStart:
		tx.pin.Set(false)
		tx.bit.Store(0)
		tx.state.Store(uint32(TxData))
	case TxData:
		bit := tx.bit.Load()
		tx.pin.Set((tx.buf.Load()>>bit)&1 == 1)
		bit++
		tx.bit.Store(bit)
		if bit >= DataBits {
			tx.state.Store(uint32(TxStop))
		}
	case TxStop:
		tx.pin.Set(true)
		tx.state.Store(uint32(TxIdle))
		tx.stats.frames.Add(1)
		tx.busy.Store(false)
	}
}

// State returns the current state.
func (tx *Transmitter) State() TxState {
	return TxState(tx.state.Load())
}

// Busy reports whether a frame has been accepted and its stop bit not yet
// driven.
func (tx *Transmitter) Busy() bool {
	return tx.busy.Load()
}

// WriteByte waits for any frame in flight to finish, then hands c to the
// state machine. It returns once c is accepted, not once it is on the wire.
func (tx *Transmitter) WriteByte(c byte) error {
	return tx.WriteByteContext(context.Background(), c)
}

// WriteByteContext is WriteByte that gives up when ctx is done.
func (tx *Transmitter) WriteByteContext(ctx context.Context, c byte) error {
	for {
		if tx.ticker == nil {
			return ErrStopped
		}
		if tx.busy.CompareAndSwap(false, true) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tx.yield()
	}
	// buffer before state: the tick reads the buffer only after seeing TxStart
	tx.buf.Store(uint32(c))
	tx.state.Store(uint32(TxStart))
	return nil
}

// Write implements io.Writer. Each byte blocks as WriteByte does.
func (tx *Transmitter) Write(p []byte) (int, error) {
	for n, c := range p {
		if err := tx.WriteByte(c); err != nil {
			return n, err
		}
	}
	return len(p), nil
}

// Flush blocks until the last accepted frame has been fully driven.
func (tx *Transmitter) Flush() error {
	return tx.FlushContext(context.Background())
}

// FlushContext is Flush that gives up when ctx is done.
func (tx *Transmitter) FlushContext(ctx context.Context) error {
	for tx.busy.Load() {
		if tx.ticker == nil {
			return ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tx.yield()
	}
	return nil
}

func (tx *Transmitter) yield() {
	if tx.Yield != nil {
		tx.Yield()
	}
}
