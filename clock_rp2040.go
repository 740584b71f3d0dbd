//go:build rp2040

package softuart

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"time"
)

// Alarm 0 belongs to the TinyGo runtime's sleep timer.
const (
	alarmTickerA = 1
	alarmTickerB = 2
	alarmOnce    = 3
)

type alarmSlot struct {
	fn     func()
	target uint32 // microseconds, TIMERAWL
	period uint32 // microseconds, 0 for one-shot
	active bool
}

// TimerClock implements Clock on the RP2040 system timer. Alarms 1 and 2 run
// periodic tickers, alarm 3 runs one-shot callbacks. That is enough for one
// UART: the transmit ticker, the receive sampler and the start confirmation.
type TimerClock struct {
	slots [4]alarmSlot
}

var timerClock TimerClock

func init() {
	interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm1).Enable()
	interrupt.New(rp.IRQ_TIMER_IRQ_2, handleAlarm2).Enable()
	interrupt.New(rp.IRQ_TIMER_IRQ_3, handleAlarm3).Enable()
}

func handleAlarm1(interrupt.Interrupt) { timerClock.fire(alarmTickerA) }
func handleAlarm2(interrupt.Interrupt) { timerClock.fire(alarmTickerB) }
func handleAlarm3(interrupt.Interrupt) { timerClock.fire(alarmOnce) }

// NewTimerClock returns the timer clock. There is only one system timer, so
// every call returns the same clock.
func NewTimerClock() *TimerClock {
	return &timerClock
}

// Every panics when both ticker alarms are taken.
func (c *TimerClock) Every(period time.Duration, fn func()) Ticker {
	n := alarmTickerA
	if c.slots[n].active {
		n = alarmTickerB
	}
	if c.slots[n].active {
		panic("softuart: no free timer alarm")
	}
	us := micros(period)
	c.slots[n] = alarmSlot{fn: fn, period: us, active: true}
	c.arm(n, rp.TIMER.TIMERAWL.Get()+us)
	return alarmTicker{c: c, n: n}
}

// After replaces any one-shot callback still pending.
func (c *TimerClock) After(delay time.Duration, fn func()) {
	c.disarm(alarmOnce)
	c.slots[alarmOnce] = alarmSlot{fn: fn, active: true}
	c.arm(alarmOnce, rp.TIMER.TIMERAWL.Get()+micros(delay))
}

// arm sets alarm n for target. A target the counter has already reached
// would not match again until the counter wraps, so the interrupt is forced
// instead.
func (c *TimerClock) arm(n int, target uint32) {
	c.slots[n].target = target
	rp.TIMER.INTE.SetBits(1 << n)
	alarmRegister(n).Set(target)
	if deadlinePassed(target, rp.TIMER.TIMERAWL.Get()) && rp.TIMER.ARMED.HasBits(1<<n) {
		rp.TIMER.ARMED.Set(1 << n)
		rp.TIMER.INTF.SetBits(1 << n)
	}
}

func (c *TimerClock) disarm(n int) {
	c.slots[n].active = false
	rp.TIMER.ARMED.Set(1 << n)
	rp.TIMER.INTE.ClearBits(1 << n)
	rp.TIMER.INTF.ClearBits(1 << n)
	rp.TIMER.INTR.Set(1 << n)
}

func (c *TimerClock) fire(n int) {
	rp.TIMER.INTF.ClearBits(1 << n)
	rp.TIMER.INTR.Set(1 << n)
	s := &c.slots[n]
	if !s.active {
		return
	}
	fn := s.fn
	if s.period == 0 {
		c.disarm(n)
		fn()
		return
	}
	// re-arm before the callback so a Stop from inside it sticks
	c.arm(n, nextDeadline(s.target, s.period, rp.TIMER.TIMERAWL.Get()))
	fn()
}

type alarmTicker struct {
	c *TimerClock
	n int
}

func (t alarmTicker) Stop() {
	t.c.disarm(t.n)
}

func alarmRegister(n int) *volatile.Register32 {
	switch n {
	case alarmTickerA:
		return &rp.TIMER.ALARM1
	case alarmTickerB:
		return &rp.TIMER.ALARM2
	}
	return &rp.TIMER.ALARM3
}

func micros(d time.Duration) uint32 {
	us := uint32(d / time.Microsecond)
	if us == 0 {
		us = 1
	}
	return us
}
