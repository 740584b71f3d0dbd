package softuart

// Alarm arithmetic on the 32-bit microsecond counter of a hardware timer.
// The counter wraps about every 71.6 minutes and an alarm only fires when the
// counter equals its target, so a target already behind the counter would
// wait a whole wrap.

// deadlinePassed reports whether counter now has reached target.
func deadlinePassed(target, now uint32) bool {
	return int32(now-target) >= 0
}

// nextDeadline returns the first target+k*period, k >= 1, still ahead of now.
// Periods missed while the callback was held off are skipped, not replayed.
func nextDeadline(target, period, now uint32) uint32 {
	next := target + period
	if deadlinePassed(next, now) {
		next += ((now-next)/period + 1) * period
	}
	return next
}
