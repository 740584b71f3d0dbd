package softuart

import (
	"context"
	"time"
)

// Config describes a UART. Either pin may be nil for a one-directional UART.
type Config struct {
	// Baud defaults to DefaultBaud.
	Baud  int
	TX    OutputPin
	RX    InputPin
	Clock Clock
}

// UART pairs a Transmitter and a Receiver running at the same bit period.
type UART struct {
	// Tx is nil without a TX pin.
	Tx *Transmitter
	// Rx is nil without an RX pin.
	Rx *Receiver

	baud   int
	period time.Duration
}

// New builds a stopped UART from cfg.
func New(cfg Config) (*UART, error) {
	if cfg.TX == nil && cfg.RX == nil {
		return nil, ErrNoPin
	}
	if cfg.Clock == nil {
		return nil, ErrNoClock
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	period, err := BitPeriod(cfg.Baud)
	if err != nil {
		return nil, err
	}

	u := &UART{baud: cfg.Baud, period: period}
	if cfg.TX != nil {
		u.Tx = NewTransmitter(cfg.TX, cfg.Clock, period)
	}
	if cfg.RX != nil {
		u.Rx = NewReceiver(cfg.RX, cfg.Clock, period)
	}
	return u, nil
}

// Baud returns the configured baud rate.
func (u *UART) Baud() int { return u.baud }

// Period returns the bit period shared by both directions.
func (u *UART) Period() time.Duration { return u.period }

// SetYield sets the function both directions run while busy-waiting.
func (u *UART) SetYield(yield func()) {
	if u.Tx != nil {
		u.Tx.Yield = yield
	}
	if u.Rx != nil {
		u.Rx.Yield = yield
	}
}

// Start starts the transmit timer and enables the receive interrupt.
func (u *UART) Start() error {
	if u.Rx != nil {
		if err := u.Rx.Start(); err != nil {
			return err
		}
	}
	if u.Tx != nil {
		u.Tx.Start()
	}
	return nil
}

// Stop halts both directions.
func (u *UART) Stop() error {
	if u.Tx != nil {
		u.Tx.Stop()
	}
	if u.Rx != nil {
		return u.Rx.Stop()
	}
	return nil
}

// WriteByte implements io.ByteWriter; see Transmitter.WriteByte.
func (u *UART) WriteByte(c byte) error {
	if u.Tx == nil {
		return ErrNoPin
	}
	return u.Tx.WriteByte(c)
}

// Write implements io.Writer.
func (u *UART) Write(p []byte) (int, error) {
	if u.Tx == nil {
		return 0, ErrNoPin
	}
	return u.Tx.Write(p)
}

// Flush blocks until the last accepted byte is on the wire.
func (u *UART) Flush() error {
	if u.Tx == nil {
		return nil
	}
	return u.Tx.Flush()
}

// ReadByte implements io.ByteReader; see Receiver.ReadByte.
func (u *UART) ReadByte() (byte, error) {
	if u.Rx == nil {
		return 0, ErrNoPin
	}
	return u.Rx.ReadByte()
}

// ReadByteContext waits for a received byte or for ctx to be done.
func (u *UART) ReadByteContext(ctx context.Context) (byte, error) {
	if u.Rx == nil {
		return 0, ErrNoPin
	}
	return u.Rx.ReadByteContext(ctx)
}

// Read implements io.Reader without blocking.
func (u *UART) Read(p []byte) (int, error) {
	if u.Rx == nil {
		return 0, ErrNoPin
	}
	return u.Rx.Read(p)
}

// Buffered returns the number of received bytes waiting, 0 or 1.
func (u *UART) Buffered() int {
	if u.Rx == nil {
		return 0
	}
	return u.Rx.Buffered()
}

// Stats returns a snapshot of both directions' counters.
func (u *UART) Stats() Stats {
	var s Stats
	if u.Tx != nil {
		u.Tx.stats.fill(&s)
	}
	if u.Rx != nil {
		u.Rx.stats.fill(&s)
	}
	return s
}

// ResetStats zeroes all counters.
func (u *UART) ResetStats() {
	if u.Tx != nil {
		u.Tx.stats.reset()
	}
	if u.Rx != nil {
		u.Rx.stats.reset()
	}
}
