package softuart_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparques/softuart"
	"github.com/sparques/softuart/sim"
)

func TestBitPeriod(t *testing.T) {
	cases := []struct {
		baud int
		want time.Duration
	}{
		{115200, 9 * time.Microsecond},
		{9600, 104 * time.Microsecond},
		{57600, 17 * time.Microsecond},
		{1000000, time.Microsecond},
		{1500000, time.Microsecond},
		{2000000, time.Microsecond},
		{1, time.Second},
	}
	for _, c := range cases {
		got, err := softuart.BitPeriod(c.baud)
		require.NoError(t, err, "baud %d", c.baud)
		assert.Equal(t, c.want, got, "baud %d", c.baud)
	}

	for _, baud := range []int{0, -9600, 2000001, 3000000} {
		_, err := softuart.BitPeriod(baud)
		assert.ErrorIs(t, err, softuart.ErrBaud, "baud %d", baud)
	}
}

func TestMarshalFrame(t *testing.T) {
	f := softuart.MarshalFrame(0x01)
	assert.Equal(t, softuart.Frame{false, true, false, false, false, false, false, false, false, true}, f)
	assert.True(t, f.Valid())
	assert.Equal(t, byte(0x01), f.Byte())

	f = softuart.MarshalFrame(0x80)
	assert.True(t, f[8])
	assert.False(t, f[1])

	for b := 0; b < 256; b++ {
		assert.Equal(t, byte(b), softuart.MarshalFrame(byte(b)).Byte())
	}

	f[9] = false
	assert.False(t, f.Valid())
}

func TestNewValidation(t *testing.T) {
	clock := sim.NewClock()
	wire := sim.NewWire(clock)

	_, err := softuart.New(softuart.Config{Clock: clock})
	assert.ErrorIs(t, err, softuart.ErrNoPin)

	_, err = softuart.New(softuart.Config{TX: wire})
	assert.ErrorIs(t, err, softuart.ErrNoClock)

	_, err = softuart.New(softuart.Config{Baud: -1, TX: wire, Clock: clock})
	assert.ErrorIs(t, err, softuart.ErrBaud)

	u, err := softuart.New(softuart.Config{TX: wire, Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, softuart.DefaultBaud, u.Baud())
	assert.Equal(t, 9*time.Microsecond, u.Period())
	assert.Nil(t, u.Rx)

	_, err = u.ReadByte()
	assert.ErrorIs(t, err, softuart.ErrNoPin)
}

func TestRoundTripAllBytes(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)

	for b := 0; b < 256; b++ {
		got, err := lb.RoundTrip(byte(b))
		require.NoError(t, err, "byte %#02x", b)
		require.Equal(t, byte(b), got)
	}

	s := lb.UART.Stats()
	assert.Equal(t, uint32(256), s.TxFrames)
	assert.Equal(t, uint32(256), s.RxFrames)
	assert.Zero(t, s.RxGlitches)
	assert.Zero(t, s.RxFramingErrors)
	assert.Zero(t, s.RxOverruns)
}

func TestRoundTripSlowBaud(t *testing.T) {
	lb, err := sim.NewLoopback(9600)
	require.NoError(t, err)

	got, err := lb.Send([]byte("Hello\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello\r\n", string(got))
}

func TestTransmitBitOrder(t *testing.T) {
	for bit := 0; bit < softuart.DataBits; bit++ {
		lb, err := sim.NewLoopback(115200)
		require.NoError(t, err)
		period := lb.UART.Period()

		v := byte(1) << bit
		require.NoError(t, lb.UART.WriteByte(v))
		lb.Clock.Advance(2 * lb.FrameTime())

		trace := lb.Wire.Trace()
		require.NotEmpty(t, trace)
		require.False(t, trace[0].High)
		start := trace[0].At

		for i := 0; i < softuart.DataBits; i++ {
			mid := start + time.Duration(i+1)*period + period/2
			assert.Equal(t, i == bit, lb.Wire.LevelAt(mid), "value %#02x data bit %d", v, i)
		}
		assert.True(t, lb.Wire.LevelAt(start+9*period+period/2), "stop bit")

		frames := lb.Wire.Decode(period)
		require.Len(t, frames, 1)
		assert.Equal(t, v, frames[0].Byte())
	}
}

func TestIdleLineStaysHigh(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)

	lb.Clock.Advance(10 * time.Millisecond)
	assert.True(t, lb.Wire.Get())
	assert.Empty(t, lb.Wire.Trace())
	assert.Equal(t, softuart.TxIdle, lb.UART.Tx.State())
	assert.Equal(t, softuart.RxIdle, lb.UART.Rx.State())
	assert.False(t, lb.UART.Tx.Busy())
}

func TestTransmitIdleRecoversLine(t *testing.T) {
	clock := sim.NewClock()
	wire := sim.NewWire(clock)
	tx := softuart.NewTransmitter(wire, clock, 9*time.Microsecond)
	tx.Start()

	// something else pulled the line low; the next idle tick restores it
	wire.Set(false)
	clock.Advance(9 * time.Microsecond)
	assert.True(t, wire.Get())
}

func TestBusyExclusion(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)
	tx := lb.UART.Tx

	require.NoError(t, tx.WriteByte(0x55))
	assert.True(t, tx.Busy())
	accepted := lb.Clock.Now()

	// blocks, stepping virtual time, until the first stop bit is driven
	require.NoError(t, tx.WriteByte(0xAA))
	assert.GreaterOrEqual(t, lb.Clock.Now()-accepted, 9*lb.UART.Period())
	assert.Equal(t, softuart.TxStart, tx.State())

	require.True(t, lb.Clock.RunUntil(lb.UART.Rx.Ready, lb.FrameTime()))
	b, err := lb.UART.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), b)

	require.True(t, lb.Clock.RunUntil(lb.UART.Rx.Ready, 2*lb.FrameTime()))
	b, err = lb.UART.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), b)

	frames := lb.Wire.Decode(lb.UART.Period())
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0x55), frames[0].Byte())
	assert.Equal(t, byte(0xAA), frames[1].Byte())
	assert.True(t, frames[0].Valid())
	assert.True(t, frames[1].Valid())
}

func TestFlushWaitsForStopBit(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)

	n, err := lb.UART.Write([]byte{0x00, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, lb.UART.Flush())
	assert.False(t, lb.UART.Tx.Busy())
	assert.Equal(t, uint32(2), lb.UART.Stats().TxFrames)
	assert.True(t, lb.Wire.Get())
}

func TestWriteStopped(t *testing.T) {
	clock := sim.NewClock()
	tx := softuart.NewTransmitter(sim.NewWire(clock), clock, 9*time.Microsecond)

	assert.ErrorIs(t, tx.WriteByte('x'), softuart.ErrStopped)

	tx.Start()
	require.NoError(t, tx.WriteByte('x'))
	tx.Stop()
	assert.False(t, tx.Busy())
	assert.Equal(t, softuart.TxIdle, tx.State())
	assert.Zero(t, clock.Pending())
}

func TestWriteByteContextCancelled(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// not busy: accepted regardless of ctx
	require.NoError(t, lb.UART.Tx.WriteByteContext(ctx, 'a'))
	// busy: gives up instead of waiting
	assert.ErrorIs(t, lb.UART.Tx.WriteByteContext(ctx, 'b'), context.Canceled)
	assert.ErrorIs(t, lb.UART.Tx.FlushContext(ctx), context.Canceled)
}

func newReceiver(t *testing.T) (*sim.Clock, *sim.Wire, *softuart.UART) {
	t.Helper()
	clock := sim.NewClock()
	wire := sim.NewWire(clock)
	u, err := softuart.New(softuart.Config{RX: wire, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, u.Start())
	return clock, wire, u
}

func TestGlitchRejected(t *testing.T) {
	clock, wire, u := newReceiver(t)
	period := u.Period()

	wire.Pulse(period / 4)
	assert.Equal(t, softuart.RxStart, u.Rx.State())

	clock.Advance(2 * period)
	assert.Equal(t, softuart.RxIdle, u.Rx.State())
	assert.False(t, u.Rx.Ready())
	assert.Zero(t, clock.Pending(), "sampler must not be armed")
	assert.Equal(t, uint32(1), u.Stats().RxGlitches)

	// still armed for a real frame afterwards
	wire.Drive(softuart.MarshalFrame('k'), period)
	clock.Advance(12 * period)
	b, err := u.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('k'), b)
}

func TestBadStopBitDropped(t *testing.T) {
	clock, wire, u := newReceiver(t)
	period := u.Period()

	f := softuart.MarshalFrame(0x42)
	f[softuart.FrameBits-1] = false
	wire.Drive(f, period)
	clock.Advance(11 * period)

	assert.False(t, u.Rx.Ready())
	assert.Equal(t, softuart.RxIdle, u.Rx.State())
	assert.Zero(t, clock.Pending())
	_, err := u.ReadByte()
	assert.ErrorIs(t, err, softuart.ErrNoData)
	assert.Equal(t, uint32(1), u.Stats().RxFramingErrors)

	wire.Drive(softuart.MarshalFrame(0x43), period)
	clock.Advance(11 * period)
	b, err := u.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x43), b)
}

func TestOverrunOverwritesAndCounts(t *testing.T) {
	clock, wire, u := newReceiver(t)
	period := u.Period()

	wire.Drive(softuart.MarshalFrame('1'), period)
	clock.Advance(11 * period)
	require.True(t, u.Rx.Ready())

	wire.Drive(softuart.MarshalFrame('2'), period)
	// arming clears the unread byte
	assert.False(t, u.Rx.Ready())
	clock.Advance(11 * period)

	b, err := u.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('2'), b)
	assert.Equal(t, uint32(1), u.Stats().RxOverruns)
	assert.Equal(t, uint32(2), u.Stats().RxFrames)

	_, err = u.ReadByte()
	assert.ErrorIs(t, err, softuart.ErrNoData)
}

// edgePin lets a test deliver the falling edge interrupt at any line level.
type edgePin struct {
	high    bool
	handler func()
}

func (p *edgePin) Get() bool { return p.high }

func (p *edgePin) SetFallingInterrupt(handler func()) error {
	p.handler = handler
	return nil
}

func TestStaleEdgeIgnored(t *testing.T) {
	clock := sim.NewClock()
	pin := &edgePin{high: true}
	rx := softuart.NewReceiver(pin, clock, 9*time.Microsecond)
	require.NoError(t, rx.Start())
	require.NotNil(t, pin.handler)

	// delivered after the line already went back high
	pin.handler()
	assert.Equal(t, softuart.RxIdle, rx.State())
	assert.Zero(t, clock.Pending())

	pin.high = false
	pin.handler()
	assert.Equal(t, softuart.RxStart, rx.State())
	assert.Equal(t, 1, clock.Pending())

	// duplicate delivery while validating
	pin.handler()
	assert.Equal(t, softuart.RxStart, rx.State())
	assert.Equal(t, 1, clock.Pending())

	require.NoError(t, rx.Stop())
	assert.Nil(t, pin.handler)
}

func TestTickRechecksStart(t *testing.T) {
	clock := sim.NewClock()
	pin := &edgePin{}
	rx := softuart.NewReceiver(pin, clock, 9*time.Microsecond)
	require.NoError(t, rx.Start())

	pin.handler()
	require.Equal(t, softuart.RxStart, rx.State())
	rx.Tick()
	assert.Equal(t, softuart.RxData, rx.State())

	require.NoError(t, rx.Stop())
	require.NoError(t, rx.Start())
	pin.handler()
	require.Equal(t, softuart.RxStart, rx.State())
	pin.high = true
	rx.Tick()
	assert.Equal(t, softuart.RxIdle, rx.State())
	assert.Equal(t, uint32(1), rx.Stats().RxGlitches)
}

func TestStopCancelsSampler(t *testing.T) {
	clock, wire, u := newReceiver(t)
	period := u.Period()

	wire.Set(false)
	clock.Advance(period / 2)
	assert.Equal(t, softuart.RxData, u.Rx.State())
	assert.Equal(t, 1, clock.Pending())

	require.NoError(t, u.Rx.Stop())
	assert.Zero(t, clock.Pending())
	assert.Equal(t, softuart.RxIdle, u.Rx.State())
}

func TestStopWhileConfirmPending(t *testing.T) {
	clock, wire, u := newReceiver(t)

	wire.Set(false)
	require.NoError(t, u.Rx.Stop())
	clock.Advance(u.Period())
	assert.Equal(t, softuart.RxIdle, u.Rx.State())
	assert.Zero(t, clock.Pending())
}

func TestRestartDropsStaleConfirm(t *testing.T) {
	clock, wire, u := newReceiver(t)

	wire.Set(false) // confirmation due at 4.5µs
	clock.Advance(time.Microsecond)
	require.NoError(t, u.Rx.Stop())
	wire.Set(true)
	require.NoError(t, u.Rx.Start())
	clock.Advance(time.Microsecond)
	wire.Set(false) // new confirmation due at 6.5µs

	clock.Advance(3 * time.Microsecond)
	assert.Equal(t, softuart.RxStart, u.Rx.State(), "stale confirmation must not arm the sampler")
	clock.Advance(2 * time.Microsecond)
	assert.Equal(t, softuart.RxData, u.Rx.State())
	assert.Equal(t, 1, clock.Pending())
}

func TestReadNonBlocking(t *testing.T) {
	clock, wire, u := newReceiver(t)
	buf := make([]byte, 4)

	n, err := u.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, u.Buffered())

	wire.Drive(softuart.MarshalFrame('Z'), u.Period())
	clock.Advance(11 * u.Period())
	assert.Equal(t, 1, u.Buffered())

	n, err = u.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('Z'), buf[0])
}

func TestReadByteContext(t *testing.T) {
	clock, wire, u := newReceiver(t)
	u.SetYield(func() { clock.Step() })

	wire.Drive(softuart.MarshalFrame('q'), u.Period())
	b, err := u.ReadByteContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte('q'), b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = u.ReadByteContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResetStats(t *testing.T) {
	lb, err := sim.NewLoopback(115200)
	require.NoError(t, err)

	_, err = lb.RoundTrip('r')
	require.NoError(t, err)
	require.NotZero(t, lb.UART.Stats().RxFrames)

	lb.UART.ResetStats()
	assert.Equal(t, softuart.Stats{}, lb.UART.Stats())
}
