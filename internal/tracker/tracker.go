// Package tracker turns a stream of playback times into verse enter/exit
// events over a timing.Index.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tilawah/versesync/internal/timing"
)

// ErrNonFiniteTime is returned by Update for NaN or infinite ticks.
// The tick is ignored and the tracker keeps its previous state.
var ErrNonFiniteTime = errors.New("tracker: non-finite playback time")

// State is the tracker's position relative to the verse table.
type State string

const (
	StateNoTiming State = "no_timing" // table empty or unavailable
	StateBefore   State = "before"    // before the first verse starts
	StateInVerse  State = "in_verse"  // inside Current()
	StateGap      State = "gap"       // between two verses
	StateAfter    State = "after"     // at or past the last verse's end
)

// GapPolicy decides what happens when playback falls between two verses.
type GapPolicy int

const (
	// GapSuppress leaves the verse and hides the highlight.
	GapSuppress GapPolicy = iota
	// GapHold keeps the previous verse active until the next one starts.
	GapHold
	// GapNearest switches to the verse whose start is closest.
	GapNearest
)

func (p GapPolicy) String() string {
	switch p {
	case GapSuppress:
		return "suppress"
	case GapHold:
		return "hold"
	case GapNearest:
		return "nearest"
	}
	return fmt.Sprintf("GapPolicy(%d)", int(p))
}

// ParseGapPolicy maps a config value onto a GapPolicy. Empty means suppress.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "suppress":
		return GapSuppress, nil
	case "hold":
		return GapHold, nil
	case "nearest":
		return GapNearest, nil
	}
	return GapSuppress, fmt.Errorf("unknown gap policy %q", s)
}

// EventKind distinguishes verse transitions.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
)

// Event is a one-shot notification of a change of the tracked verse.
// For EventExit, Index and Verse describe the verse that was left.
type Event struct {
	Kind  EventKind
	Index int
	Verse timing.VerseInterval
	Time  float64 // playback seconds of the tick that caused it
	State State   // tracker state after the transition
}

// Tracker holds the current verse for one table. It is not safe for
// concurrent use.
type Tracker struct {
	idx     *timing.Index
	policy  GapPolicy
	state   State
	current int
}

// New creates a tracker over idx. A nil or empty index gives a tracker
// that stays in StateNoTiming.
func New(idx *timing.Index, policy GapPolicy) *Tracker {
	t := &Tracker{idx: idx, policy: policy}
	t.Reset()
	return t
}

// Reset returns the tracker to its initial state.
func (t *Tracker) Reset() {
	t.current = -1
	if t.idx.Len() == 0 {
		t.state = StateNoTiming
		return
	}
	t.state = StateBefore
}

// State returns the current state.
func (t *Tracker) State() State { return t.state }

// Policy returns the gap policy in use.
func (t *Tracker) Policy() GapPolicy { return t.policy }

// CurrentIndex returns the active interval position, or -1.
func (t *Tracker) CurrentIndex() int { return t.current }

// Current returns the active verse. Under GapHold the held verse is
// reported while in StateGap.
func (t *Tracker) Current() (timing.VerseInterval, bool) {
	if t.current < 0 {
		return timing.VerseInterval{}, false
	}
	return t.idx.At(t.current), true
}

// Update feeds one playback time. It returns the transition caused by the
// tick, if any. Ticks inside the active verse, including backward seeks
// that stay inside it, produce nothing.
func (t *Tracker) Update(ts float64) (Event, bool, error) {
	if t.state == StateNoTiming {
		return Event{}, false, nil
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Event{}, false, ErrNonFiniteTime
	}

	if i, v, ok := t.idx.FindAt(ts); ok {
		return t.enter(i, v, ts)
	}

	first, _ := t.idx.First()
	last, _ := t.idx.Last()
	switch {
	case ts < first.Start:
		return t.leave(StateBefore, ts)
	case ts >= last.End:
		return t.leave(StateAfter, ts)
	}

	switch t.policy {
	case GapHold:
		if t.current >= 0 {
			t.state = StateGap
			return Event{}, false, nil
		}
	case GapNearest:
		i, v, _ := t.idx.FindNearest(ts)
		return t.enter(i, v, ts)
	}
	return t.leave(StateGap, ts)
}

// End handles the audio "ended" signal the same as reaching the end.
func (t *Tracker) End() (Event, bool) {
	if t.state == StateNoTiming {
		return Event{}, false
	}
	ev, ok, _ := t.leave(StateAfter, math.NaN())
	if last, found := t.idx.Last(); ok && found {
		ev.Time = last.End
	}
	return ev, ok
}

func (t *Tracker) enter(i int, v timing.VerseInterval, ts float64) (Event, bool, error) {
	if t.state == StateInVerse && t.current == i {
		return Event{}, false, nil
	}
	// a held verse resumed from a gap is not a new entry
	if t.state == StateGap && t.current == i {
		t.state = StateInVerse
		return Event{}, false, nil
	}
	t.current = i
	t.state = StateInVerse
	return Event{Kind: EventEnter, Index: i, Verse: v, Time: ts, State: StateInVerse}, true, nil
}

func (t *Tracker) leave(next State, ts float64) (Event, bool, error) {
	prev := t.current
	t.state = next
	t.current = -1
	if prev < 0 {
		return Event{}, false, nil
	}
	return Event{Kind: EventExit, Index: prev, Verse: t.idx.At(prev), Time: ts, State: next}, true, nil
}
