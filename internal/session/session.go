// Package session ties the tracking engine together for one player: it owns
// the verse table, the tracker, the highlight scheduler and the overlay
// projection, and serializes every input through one lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tilawah/versesync/internal/highlight"
	"github.com/tilawah/versesync/internal/monitoring"
	"github.com/tilawah/versesync/internal/overlay"
	"github.com/tilawah/versesync/internal/timeutil"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/timingsource"
	"github.com/tilawah/versesync/internal/tracker"
)

var (
	// ErrStaleGeneration is returned for input tagged with a generation
	// that has since been replaced. Callers drop it silently.
	ErrStaleGeneration = errors.New("session: stale generation")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("session: closed")
)

// Event is a verse transition as seen by listeners.
type Event struct {
	Generation uint64
	Kind       tracker.EventKind
	Verse      timing.VerseInterval
	Time       float64       // playback seconds
	Display    time.Duration // highlight duration, enter events only
}

// Transition is the record handed to a Recorder for every verse event.
type Transition struct {
	SessionID  string
	Generation uint64
	Key        timing.Key
	Kind       tracker.EventKind
	Verse      int
	MediaTime  float64
	Display    time.Duration
	At         time.Time
}

// Recorder persists transitions. Record must not block.
type Recorder interface {
	Record(Transition)
}

// Config holds the collaborators of a Session. Every field is optional.
type Config struct {
	Clock     timeutil.Clock // Default: timeutil.RealClock
	Bands     *highlight.Bands
	GapPolicy tracker.GapPolicy
	Surface   overlay.Surface // Optional: page renderer
	Recorder  Recorder        // Optional: transition journal

	// OnEvent is called for each verse enter/exit. OnVisibility is called
	// whenever the highlight is shown or hidden, with the instruction that
	// was applied to the surface. Both run after the session lock has been
	// released and may call back into the session.
	OnEvent      func(Event)
	OnVisibility func(visible bool, in overlay.Instruction)
}

// Session is one playback session. All methods are safe for concurrent use.
type Session struct {
	id     uuid.UUID
	clock  timeutil.Clock
	policy tracker.GapPolicy
	cfg    Config

	sched *highlight.Scheduler
	proj  *overlay.Projector

	mu       sync.Mutex
	gen      uint64
	closed   bool
	key      timing.Key
	table    *timing.Table
	idx      *timing.Index
	tr       *tracker.Tracker
	loadErr  error
	elapsed  float64
	duration float64 // media duration reported by the player, if any
	visible  bool

	notify []func() // listener calls queued under mu, run after unlock
}

// New creates a session with no timing loaded.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	bands := highlight.DefaultBands()
	if cfg.Bands != nil {
		bands = *cfg.Bands
	}

	s := &Session{
		id:     uuid.New(),
		clock:  cfg.Clock,
		policy: cfg.GapPolicy,
		cfg:    cfg,
		tr:     tracker.New(nil, cfg.GapPolicy),
	}
	s.proj = overlay.NewProjector("verse-highlight-" + s.id.String())
	s.sched = highlight.NewScheduler(cfg.Clock, bands, s.onHide)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id.String() }

// HighlightID returns the overlay id the session draws under.
func (s *Session) HighlightID() string { return s.proj.ID() }

// Generation returns the current table generation. Ticks must carry it.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Load fetches timing for key and installs it. The previous table is torn
// down immediately; the fetch runs without the lock held. If another Load,
// Install or Close happens meanwhile, the result is dropped and
// ErrStaleGeneration returned. A fetch or normalization failure leaves the
// session in StateNoTiming and is returned as a *timing.NormalizationError;
// the returned generation is valid either way.
func (s *Session) Load(ctx context.Context, src timingsource.Source, key timing.Key) (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	gen := s.replaceLocked(key)
	s.mu.Unlock()
	s.flush()

	raw, err := src.FetchTiming(ctx, key)
	var tbl *timing.Table
	if err == nil {
		tbl, err = timing.Normalize(key, raw)
	}

	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.closed {
		return gen, ErrClosed
	}
	if s.gen != gen {
		monitoring.Debugf("session %s: dropping timing for %s, generation %d superseded by %d", s.ID(), key, gen, s.gen)
		return gen, ErrStaleGeneration
	}
	if err != nil {
		s.loadErr = err
		monitoring.Logf("session %s: highlighting unavailable for %s: %v", s.ID(), key, err)
		return gen, err
	}
	s.installLocked(tbl)
	return gen, nil
}

// Install replaces the table synchronously and returns the new generation.
// A nil or empty table puts the session in StateNoTiming.
func (s *Session) Install(tbl *timing.Table) (uint64, error) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	gen := s.replaceLocked(tbl.Key())
	if tbl.Len() == 0 {
		s.loadErr = &timing.NormalizationError{Kind: timing.KindEmpty, Key: tbl.Key()}
		return gen, nil
	}
	s.installLocked(tbl)
	return gen, nil
}

// Tick feeds a playback time for generation gen.
func (s *Session) Tick(gen uint64, t float64) error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if err := s.checkLocked(gen); err != nil {
		return err
	}
	return s.updateLocked(t)
}

// Seek handles an explicit seek. It goes through the same path as Tick:
// landing inside the active verse changes nothing.
func (s *Session) Seek(gen uint64, t float64) error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if err := s.checkLocked(gen); err != nil {
		return err
	}
	monitoring.Debugf("session %s: seek to %.3fs", s.ID(), t)
	return s.updateLocked(t)
}

// Ended handles the player's "ended" signal.
func (s *Session) Ended(gen uint64) error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if err := s.checkLocked(gen); err != nil {
		return err
	}
	if last, ok := s.idx.Last(); ok {
		s.elapsed = math.Max(s.elapsed, last.End)
	}
	if ev, ok := s.tr.End(); ok {
		s.handleLocked(ev)
	}
	return nil
}

// OnTimeUpdate is Tick for callers that cannot act on errors. Stale and
// non-finite ticks are logged at debug level and dropped.
func (s *Session) OnTimeUpdate(gen uint64, t float64) {
	if err := s.Tick(gen, t); err != nil {
		monitoring.Debugf("session %s: tick %v at gen %d dropped: %v", s.ID(), t, gen, err)
	}
}

// SetMediaDuration records the audio length reported by the player, used
// for Snapshot.Total.
func (s *Session) SetMediaDuration(seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration = seconds
}

// Close tears the session down. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.replaceLocked(s.key)
	s.closed = true
	return nil
}

func (s *Session) checkLocked(gen uint64) error {
	if s.closed {
		return ErrClosed
	}
	if gen != s.gen {
		return ErrStaleGeneration
	}
	return nil
}

func (s *Session) updateLocked(t float64) error {
	// checked here as well as in the tracker, which skips input checks
	// while it has no timing
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("tick %v: %w", t, tracker.ErrNonFiniteTime)
	}
	ev, ok, err := s.tr.Update(t)
	if err != nil {
		return fmt.Errorf("tick %v: %w", t, err)
	}
	if t >= 0 {
		s.elapsed = t
	}
	if ok {
		s.handleLocked(ev)
	}
	return nil
}

// replaceLocked discards the current table and tracking state, cancels the
// pending hide, clears the overlay and bumps the generation.
func (s *Session) replaceLocked(key timing.Key) uint64 {
	s.sched.Exit()
	s.showLocked(nil, false)
	s.gen++
	s.key = key
	s.table, s.idx = nil, nil
	s.tr = tracker.New(nil, s.policy)
	s.loadErr = nil
	s.elapsed = 0
	s.duration = 0
	return s.gen
}

func (s *Session) installLocked(tbl *timing.Table) {
	s.table = tbl
	s.idx = timing.NewIndex(tbl)
	s.tr = tracker.New(s.idx, s.policy)
	s.loadErr = nil
	monitoring.Debugf("session %s: installed %d verses for %s at gen %d", s.ID(), tbl.Len(), tbl.Key(), s.gen)
}

func (s *Session) handleLocked(ev tracker.Event) {
	out := Event{Generation: s.gen, Kind: ev.Kind, Verse: ev.Verse, Time: ev.Time}

	switch ev.Kind {
	case tracker.EventEnter:
		d, _ := s.sched.Enter(ev.Verse)
		out.Display = d
		v := ev.Verse
		s.showLocked(&v, true)
	case tracker.EventExit:
		s.sched.Exit()
		s.showLocked(nil, false)
	}

	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Record(Transition{
			SessionID:  s.ID(),
			Generation: s.gen,
			Key:        s.key,
			Kind:       ev.Kind,
			Verse:      ev.Verse.Verse,
			MediaTime:  ev.Time,
			Display:    out.Display,
			At:         s.clock.Now(),
		})
	}
	if fn := s.cfg.OnEvent; fn != nil {
		s.notify = append(s.notify, func() { fn(out) })
	}
}

// showLocked projects v onto the surface. Surface errors are logged, never
// returned: the overlay must not break playback. Listeners hear about every
// shown verse and about the highlight going away, not about repeated clears.
func (s *Session) showLocked(v *timing.VerseInterval, visible bool) {
	in := s.proj.Project(v, visible)
	wasVisible := s.visible
	s.visible = visible
	if err := overlay.Apply(s.cfg.Surface, in); err != nil {
		monitoring.Logf("session %s: overlay %s failed: %v", s.ID(), in.Op, err)
	}
	if fn := s.cfg.OnVisibility; fn != nil && (visible || wasVisible) {
		s.notify = append(s.notify, func() { fn(visible, in) })
	}
}

// onHide runs on the scheduler's timer after the highlight expired.
func (s *Session) onHide(seq uint64) {
	s.mu.Lock()
	defer s.flush()
	defer s.mu.Unlock()
	if s.closed || s.sched.Seq() != seq || !s.visible {
		return
	}
	s.showLocked(nil, false)
}

// flush runs the queued listener calls. It must be called without mu held.
func (s *Session) flush() {
	s.mu.Lock()
	calls := s.notify
	s.notify = nil
	s.mu.Unlock()
	for _, fn := range calls {
		fn()
	}
}
