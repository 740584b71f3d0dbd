package softuart

import "sync/atomic"

// Stats holds counters since start or the last ResetStats.
type Stats struct {
	TxFrames uint32 // frames whose stop bit has been driven

	RxFrames        uint32 // frames with a valid stop bit
	RxGlitches      uint32 // falling edges rejected by the start confirmation
	RxFramingErrors uint32 // frames dropped because the stop bit read low
	RxOverruns      uint32 // ready bytes lost to the next start edge
}

type txCounters struct {
	frames atomic.Uint32
}

type rxCounters struct {
	frames        atomic.Uint32
	glitches      atomic.Uint32
	framingErrors atomic.Uint32
	overruns      atomic.Uint32
}

func (c *txCounters) fill(s *Stats) {
	s.TxFrames = c.frames.Load()
}

func (c *txCounters) reset() {
	c.frames.Store(0)
}

func (c *rxCounters) fill(s *Stats) {
	s.RxFrames = c.frames.Load()
	s.RxGlitches = c.glitches.Load()
	s.RxFramingErrors = c.framingErrors.Load()
	s.RxOverruns = c.overruns.Load()
}

func (c *rxCounters) reset() {
	c.frames.Store(0)
	c.glitches.Store(0)
	c.framingErrors.Store(0)
	c.overruns.Store(0)
}

// Stats returns the transmit counters.
func (tx *Transmitter) Stats() Stats {
	var s Stats
	tx.stats.fill(&s)
	return s
}

// Stats returns the receive counters.
func (rx *Receiver) Stats() Stats {
	var s Stats
	rx.stats.fill(&s)
	return s
}
