package attempt

import (
	"sync"
	"time"
)

// Timer enforces an absolute deadline. Remaining time is always derived from
// the stored deadline, never decremented from a counter, so a process that
// sleeps past the deadline reports 0 on resume instead of a stale value.
//
// Two independently scheduled triggers race toward expiry: the display tick
// and one hard timeout. Both invoke onExpire; the session's state transition
// decides which of them actually submits.
type Timer struct {
	deadline time.Time
	tick     time.Duration
	clock    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

func newTimer(deadline time.Time, tick time.Duration, clock func() time.Time) *Timer {
	if tick <= 0 {
		tick = time.Second
	}
	return &Timer{
		deadline: deadline,
		tick:     tick,
		clock:    clock,
		stop:     make(chan struct{}),
	}
}

// Remaining is max(0, deadline-now), recomputed on every call.
func (t *Timer) Remaining() time.Duration {
	rem := t.deadline.Sub(t.clock())
	if rem < 0 {
		return 0
	}
	return rem
}

// Deadline returns the absolute expiry instant.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Arm schedules both triggers. onTick receives the freshly derived remaining
// time each interval; onExpire may fire from either trigger and must be
// idempotent at the caller.
func (t *Timer) Arm(onTick func(remaining time.Duration), onExpire func()) {
	go t.runTick(onTick, onExpire)
	go t.runDeadline(onExpire)
}

func (t *Timer) runTick(onTick func(time.Duration), onExpire func()) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rem := t.Remaining()
			if onTick != nil {
				onTick(rem)
			}
			if rem == 0 {
				onExpire()
				return
			}
		case <-t.stop:
			return
		}
	}
}

func (t *Timer) runDeadline(onExpire func()) {
	hard := time.NewTimer(t.Remaining())
	defer hard.Stop()
	select {
	case <-hard.C:
		onExpire()
	case <-t.stop:
	}
}

// Stop disarms both triggers. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
