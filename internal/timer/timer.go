// Package timer provides the cancellable deferred callbacks that drive
// readiness timeouts, round timeouts and room teardown. A Timer belongs
// to exactly one room loop: Arm, Disarm and Live must only be called
// from that loop, and the fire callback must do nothing but post a
// message back into it.
package timer

import "time"

// Timer wraps time.AfterFunc with a generation counter. Arming or
// disarming bumps the generation; a fire delivers the generation it was
// armed with, so the owner can drop fires that were superseded before
// they were processed (Live returns false for them).
type Timer struct {
	gen int
	t   *time.Timer
}

// Arm schedules fire to run after d, cancelling any pending fire first.
func (tm *Timer) Arm(d time.Duration, fire func(gen int)) int {
	tm.Disarm()
	gen := tm.gen
	tm.t = time.AfterFunc(d, func() { fire(gen) })
	return gen
}

// Disarm cancels the pending fire, if any. A fire already in flight is
// neutralized by the generation bump.
func (tm *Timer) Disarm() {
	tm.gen++
	if tm.t != nil {
		tm.t.Stop()
		tm.t = nil
	}
}

// Armed reports whether a fire is scheduled.
func (tm *Timer) Armed() bool { return tm.t != nil }

// Live reports whether a delivered fire is still the current one.
func (tm *Timer) Live(gen int) bool { return tm.t != nil && gen == tm.gen }
