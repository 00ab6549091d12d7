// Package highlight decides whether the current verse highlight is shown
// and hides it after a duration derived from the verse length.
package highlight

import (
	"sync"
	"time"

	"github.com/tilawah/versesync/internal/timeutil"
	"github.com/tilawah/versesync/internal/timing"
)

// Scheduler owns the highlight visibility flag and the single pending
// hide timer. Enter and Exit return immediately; the hide runs on the
// clock's timer goroutine.
type Scheduler struct {
	clock  timeutil.Clock
	bands  Bands
	onHide func(seq uint64)

	mu      sync.Mutex
	visible bool
	seq     uint64 // bumped on every Enter, Exit and Cancel
	pending timeutil.Timer
	due     time.Time
}

// NewScheduler creates a scheduler. onHide, if non-nil, is called after a
// scheduled hide took effect, without the scheduler lock held. It receives
// the sequence number of the Enter that scheduled it.
func NewScheduler(clock timeutil.Clock, bands Bands, onHide func(seq uint64)) *Scheduler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scheduler{clock: clock, bands: bands, onHide: onHide}
}

// Bands returns the display bands in use.
func (s *Scheduler) Bands() Bands { return s.bands }

// Enter shows the highlight for v and schedules its hide, replacing any
// pending one. It returns the display duration and the new sequence number.
func (s *Scheduler) Enter(v timing.VerseInterval) (time.Duration, uint64) {
	d := s.bands.DisplayDuration(v.Duration())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.visible = true
	seq := s.seq
	s.due = s.clock.Now().Add(d)
	s.pending = s.clock.AfterFunc(d, func() { s.fire(seq) })
	return d, seq
}

// Exit cancels the pending hide and hides immediately.
func (s *Scheduler) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.visible = false
}

// Cancel drops the pending hide without touching visibility.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Visible reports whether the highlight is currently shown.
func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Pending reports whether a hide is scheduled and when it is due.
func (s *Scheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, s.pending != nil
}

// Seq returns the sequence number of the newest schedule.
func (s *Scheduler) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Scheduler) stopLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.due = time.Time{}
	s.seq++
}

// fire runs on the timer. A timer that lost the race against Stop sees a
// newer seq and does nothing.
func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.visible = false
	s.pending = nil
	s.due = time.Time{}
	s.mu.Unlock()

	if s.onHide != nil {
		s.onHide(seq)
	}
}
