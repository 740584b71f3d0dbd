// Package sim runs softuart against virtual time.
//
// Clock delivers timer and alarm callbacks synchronously, in time order, only
// when the test advances it. Wire is a single line whose falling edges call
// the subscribed handler immediately, the way an edge interrupt would.
package sim

import (
	"container/heap"
	"time"

	"github.com/sparques/softuart"
)

// Clock implements softuart.Clock in virtual time starting at zero.
type Clock struct {
	now   time.Duration
	seq   uint64
	queue eventQueue
	once  *event // pending After callback
}

var _ softuart.Clock = (*Clock)(nil)

// NewClock returns a clock at time zero with nothing scheduled.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the virtual time elapsed since the clock was created.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Every implements softuart.Clock.
func (c *Clock) Every(period time.Duration, fn func()) softuart.Ticker {
	e := &event{at: c.now + period, period: period, fn: fn}
	c.push(e)
	return e
}

// After implements softuart.Clock. Like the hardware alarm it stands in for,
// it replaces any After callback still pending, so a Clock serves one
// receiver.
func (c *Clock) After(delay time.Duration, fn func()) {
	if c.once != nil {
		c.once.stopped = true
	}
	c.once = &event{at: c.now + delay, fn: fn}
	c.push(c.once)
}

// schedule queues fn at now+delay alongside everything else pending. Wire
// uses it to lay out stimulus.
func (c *Clock) schedule(delay time.Duration, fn func()) {
	c.push(&event{at: c.now + delay, fn: fn})
}

func (c *Clock) push(e *event) {
	c.seq++
	e.seq = c.seq
	heap.Push(&c.queue, e)
}

// peek drops cancelled events and returns the next live one, or nil.
func (c *Clock) peek() *event {
	for len(c.queue) > 0 {
		e := c.queue[0]
		if !e.stopped {
			return e
		}
		heap.Pop(&c.queue)
	}
	return nil
}

// Step moves time to the next scheduled callback and runs it. It returns
// false if nothing is scheduled.
func (c *Clock) Step() bool {
	e := c.peek()
	if e == nil {
		return false
	}
	heap.Pop(&c.queue)
	c.now = e.at
	if e == c.once {
		c.once = nil
	}
	if e.period > 0 {
		e.at += e.period
		c.push(e)
	}
	e.fn()
	return true
}

// Advance runs every callback due within d and leaves the clock at now+d.
func (c *Clock) Advance(d time.Duration) {
	end := c.now + d
	for {
		e := c.peek()
		if e == nil || e.at > end {
			break
		}
		c.Step()
	}
	c.now = end
}

// RunUntil steps the clock until cond holds or limit has elapsed. It reports
// whether cond held.
func (c *Clock) RunUntil(cond func() bool, limit time.Duration) bool {
	end := c.now + limit
	for !cond() {
		e := c.peek()
		if e == nil || e.at > end {
			c.now = end
			return cond()
		}
		c.Step()
	}
	return true
}

// Pending returns the number of live scheduled callbacks. A running ticker
// counts as one.
func (c *Clock) Pending() int {
	n := 0
	for _, e := range c.queue {
		if !e.stopped {
			n++
		}
	}
	return n
}

type event struct {
	at      time.Duration
	seq     uint64
	period  time.Duration
	fn      func()
	stopped bool
}

// Stop implements softuart.Ticker.
func (e *event) Stop() {
	e.stopped = true
}

// eventQueue orders events by time, then by scheduling order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return e
}
