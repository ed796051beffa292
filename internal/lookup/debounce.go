package lookup

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer is a single cancel-and-restart timer. Each arming is identified
// by a token; cancelling or re-arming invalidates earlier tokens, including
// ones whose timer already fired but has not been settled yet.
//
// Debouncer is not safe for concurrent use. Callers serialize Arm, Cancel,
// Armed and Settle under their own lock, and the fire callback must take that
// lock and call Settle before acting.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration
	timer clockwork.Timer
	token uint64
}

func NewDebouncer(clock clockwork.Clock, delay time.Duration) *Debouncer {
	return &Debouncer{clock: clock, delay: delay}
}

// Arm cancels any pending timer and starts a new one. When it elapses, fire
// runs on the timer's goroutine with the token of this arming.
func (d *Debouncer) Arm(fire func(token uint64)) {
	d.stop()
	d.token++
	token := d.token
	d.timer = d.clock.AfterFunc(d.delay, func() { fire(token) })
}

// Cancel stops the pending timer, if any.
func (d *Debouncer) Cancel() {
	d.stop()
	d.token++
}

// Armed reports whether a timer is pending and not yet settled.
func (d *Debouncer) Armed() bool {
	return d.timer != nil
}

// Settle reports whether token belongs to the pending timer, disarming it if so.
func (d *Debouncer) Settle(token uint64) bool {
	if d.timer == nil || token != d.token {
		return false
	}
	d.timer = nil
	return true
}

func (d *Debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
