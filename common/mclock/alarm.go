package mclock

import "sync"

// Alarm sends a value on its channel whenever the scheduled deadline is
// reached, so a loop can wake up exactly when its next deadline is due
// instead of polling.
type Alarm struct {
	mu       sync.Mutex
	clock    Clock
	timer    Timer
	deadline AbsTime
	armed    bool
	ch       chan struct{}
}

// NewAlarm creates an Alarm backed by clock.
func NewAlarm(clock Clock) *Alarm {
	return &Alarm{clock: clock, ch: make(chan struct{}, 1)}
}

// C returns the channel on which the alarm fires.
func (a *Alarm) C() <-chan struct{} {
	return a.ch
}

// Schedule arms the alarm to fire at the given absolute time. If a deadline
// is already scheduled earlier than at, it is left in place.
func (a *Alarm) Schedule(at AbsTime) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.armed && a.deadline <= at {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = true
	a.deadline = at
	now := a.clock.Now()
	if at <= now {
		a.send()
		a.armed = false
		return
	}
	a.timer = a.clock.AfterFunc(at.Sub(now), func() {
		a.mu.Lock()
		a.armed = false
		a.mu.Unlock()
		a.send()
	})
}

func (a *Alarm) send() {
	select {
	case a.ch <- struct{}{}:
	default:
	}
}

// Stop disarms the alarm.
func (a *Alarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = false
}
