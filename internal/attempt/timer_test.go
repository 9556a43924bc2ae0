package attempt

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRemainingDerivedFromDeadline(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start
	clock := func() time.Time { return now }

	tm := newTimer(start.Add(600*time.Second), time.Second, clock)
	if got := tm.Remaining(); got != 600*time.Second {
		t.Fatalf("expected 600s remaining, got %v", got)
	}

	now = start.Add(200 * time.Second)
	if got := tm.Remaining(); got != 400*time.Second {
		t.Fatalf("expected 400s remaining, got %v", got)
	}

	// simulate the host suspending past the deadline: remaining snaps to 0,
	// never negative or stale
	now = start.Add(605 * time.Second)
	if got := tm.Remaining(); got != 0 {
		t.Fatalf("expected 0 after suspend past deadline, got %v", got)
	}
}

func TestTimerFiresBothTriggers(t *testing.T) {
	tm := newTimer(time.Now().Add(30*time.Millisecond), 10*time.Millisecond, time.Now)
	defer tm.Stop()

	var ticks, expiries int32
	done := make(chan struct{})
	var closeOnce atomic.Bool
	tm.Arm(
		func(time.Duration) { atomic.AddInt32(&ticks, 1) },
		func() {
			atomic.AddInt32(&expiries, 1)
			if closeOnce.CompareAndSwap(false, true) {
				close(done)
			}
		},
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer never expired")
	}
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("expected display ticks before expiry")
	}
	// both the tick path and the hard timeout may report expiry; the session's
	// admission makes the second a no-op, so >=1 is all the timer promises
	if atomic.LoadInt32(&expiries) == 0 {
		t.Fatalf("expected at least one expiry callback")
	}
}

func TestTimerStopDisarms(t *testing.T) {
	tm := newTimer(time.Now().Add(30*time.Millisecond), 5*time.Millisecond, time.Now)

	var expiries int32
	tm.Arm(nil, func() { atomic.AddInt32(&expiries, 1) })
	tm.Stop()
	tm.Stop() // idempotent

	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&expiries); got != 0 {
		t.Fatalf("expected no expiry after stop, got %d", got)
	}
}
