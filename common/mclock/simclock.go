package mclock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated implements a Clock where time advances only when Run is called.
// It is used by tests of the request tracker, orphan-resolution tracker, and
// download coordinator to exercise delay/timeout logic deterministically.
type Simulated struct {
	mu       sync.RWMutex
	now      AbsTime
	scheduled simTimerHeap
	cond     *sync.Cond
}

func (s *Simulated) init() {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
}

// Run moves the clock forward by d and fires any timers scheduled in the
// interval, in order.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	s.init()
	end := s.now + AbsTime(d)
	var fired []*simTimer
	for s.scheduled.Len() > 0 && s.scheduled[0].at <= end {
		ev := heap.Pop(&s.scheduled).(*simTimer)
		fired = append(fired, ev)
	}
	s.now = end
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, ev := range fired {
		ev.fire()
	}
}

// ActiveTimers returns the number of timers currently scheduled.
func (s *Simulated) ActiveTimers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduled.Len()
}

// WaitForTimers blocks until at least n timers are scheduled.
func (s *Simulated) WaitForTimers(n int) {
	s.mu.Lock()
	s.init()
	for s.scheduled.Len() < n {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Now returns the current simulated time.
func (s *Simulated) Now() AbsTime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// Sleep blocks the calling goroutine until the simulated clock has advanced
// by d.
func (s *Simulated) Sleep(d time.Duration) {
	<-s.After(d)
}

// After returns a channel that receives the time once the simulated clock
// has advanced by d.
func (s *Simulated) After(d time.Duration) <-chan AbsTime {
	ch := make(chan AbsTime, 1)
	s.schedule(d, func(t AbsTime) { ch <- t })
	return ch
}

// NewTimer creates a resettable timer on the simulated clock.
func (s *Simulated) NewTimer(d time.Duration) ChanTimer {
	ch := make(chan AbsTime, 1)
	t := &simChanTimer{s: s, c: ch}
	t.ev = s.schedule(d, func(at AbsTime) {
		select {
		case ch <- at:
		default:
		}
	})
	return t
}

// AfterFunc runs f once the simulated clock has advanced by d.
func (s *Simulated) AfterFunc(d time.Duration, f func()) Timer {
	return s.schedule(d, func(AbsTime) { f() })
}

func (s *Simulated) schedule(d time.Duration, cb func(AbsTime)) *simTimer {
	s.mu.Lock()
	s.init()
	ev := &simTimer{s: s, at: s.now + AbsTime(d), cb: cb}
	heap.Push(&s.scheduled, ev)
	s.cond.Broadcast()
	s.mu.Unlock()
	return ev
}

// remove drops ev from the pending heap if it hasn't fired yet, reporting
// whether it found it there.
func (s *Simulated) remove(ev *simTimer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.scheduled {
		if e == ev {
			heap.Remove(&s.scheduled, i)
			return true
		}
	}
	return false
}

type simTimer struct {
	s   *Simulated
	at  AbsTime
	cb  func(AbsTime)
	index int
}

// fire is only ever called once per timer, by Run, after popping it off the
// heap - it can never race with remove for the same instance.
func (ev *simTimer) fire() {
	ev.cb(ev.at)
}

func (ev *simTimer) Stop() bool {
	return ev.s.remove(ev)
}

type simChanTimer struct {
	s  *Simulated
	c  chan AbsTime
	ev *simTimer
}

func (t *simChanTimer) C() <-chan AbsTime { return t.c }

func (t *simChanTimer) Stop() bool {
	return t.s.remove(t.ev)
}

func (t *simChanTimer) Reset(d time.Duration) {
	t.s.remove(t.ev)
	t.ev = t.s.schedule(d, func(at AbsTime) {
		select {
		case t.c <- at:
		default:
		}
	})
}

type simTimerHeap []*simTimer

func (h simTimerHeap) Len() int            { return len(h) }
func (h simTimerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h simTimerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *simTimerHeap) Push(x interface{}) { *h = append(*h, x.(*simTimer)) }
func (h *simTimerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
