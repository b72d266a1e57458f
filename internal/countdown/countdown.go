package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Tick is one countdown value. Gen identifies the countdown that produced it;
// the final tick of a run has Remaining == 0 and Expired set.
type Tick struct {
	Gen       uint64
	Remaining int
	Expired   bool
}

// Scheduler runs at most one countdown at a time. Ticks are handed to emit
// from the countdown goroutine; emit must not call back into the scheduler.
type Scheduler struct {
	clock  clockwork.Clock
	period time.Duration
	emit   func(Tick)

	mu   sync.Mutex
	gen  uint64
	stop chan struct{}
}

func New(clock clockwork.Clock, period time.Duration, emit func(Tick)) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if period <= 0 {
		period = time.Second
	}
	return &Scheduler{clock: clock, period: period, emit: emit}
}

// Start cancels any live countdown and begins a new one at initial. The
// initial value is emitted right away, then one decrement per period.
func (s *Scheduler) Start(initial int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.gen++
	gen := s.gen
	stop := make(chan struct{})
	s.stop = stop

	// Armed here so a fake clock sees the waiter as soon as Start returns.
	timer := s.clock.NewTimer(s.period)
	go s.run(gen, initial, timer, stop)
	return gen
}

// Cancel stops the live countdown without an expiry tick. Safe to call when
// nothing is running.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Current reports whether gen belongs to the live countdown. A countdown
// that expired stays current until the next Start or Cancel.
func (s *Scheduler) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil && gen == s.gen
}

func (s *Scheduler) cancelLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *Scheduler) run(gen uint64, remaining int, timer clockwork.Timer, stop <-chan struct{}) {
	defer timer.Stop()

	if remaining <= 0 {
		s.send(stop, Tick{Gen: gen, Expired: true})
		return
	}
	if !s.send(stop, Tick{Gen: gen, Remaining: remaining}) {
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-timer.Chan():
			remaining--
			if remaining > 0 {
				timer.Reset(s.period)
			}
			t := Tick{Gen: gen, Remaining: remaining, Expired: remaining == 0}
			if !s.send(stop, t) {
				return
			}
			if t.Expired {
				return
			}
		}
	}
}

func (s *Scheduler) send(stop <-chan struct{}, t Tick) bool {
	select {
	case <-stop:
		return false
	default:
	}
	s.emit(t)
	return true
}
