package session

import (
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/tracker"
	"github.com/tilawah/versesync/internal/units"
)

// Snapshot is the session state exposed to the UI.
type Snapshot struct {
	SessionID  string        `json:"session_id"`
	Generation uint64        `json:"generation"`
	Key        timing.Key    `json:"key"`
	State      tracker.State `json:"state"`
	// Verse is the active verse number, 0 when none.
	Verse    int              `json:"verse"`
	Visible  bool             `json:"visible"`
	Geometry *timing.Geometry `json:"geometry,omitempty"`
	Page     string           `json:"page,omitempty"`
	Elapsed  float64          `json:"elapsed"`
	Total    float64          `json:"total"`

	// HighlightAvailable is false when timing could not be loaded; audio
	// plays on without highlighting.
	HighlightAvailable bool   `json:"highlight_available"`
	Unavailable        string `json:"unavailable,omitempty"`
	Closed             bool   `json:"closed,omitempty"`
}

// ElapsedClock and TotalClock format the durations for display.
func (s Snapshot) ElapsedClock() string { return units.FormatClock(s.Elapsed) }

func (s Snapshot) TotalClock() string { return units.FormatClock(s.Total) }

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:          s.ID(),
		Generation:         s.gen,
		Key:                s.key,
		State:              s.tr.State(),
		Visible:            s.visible,
		Elapsed:            s.elapsed,
		Total:              s.duration,
		HighlightAvailable: s.idx.Len() > 0,
		Closed:             s.closed,
	}
	if v, ok := s.tr.Current(); ok {
		snap.Verse = v.Verse
		snap.Page = v.PageRef
		if s.visible {
			snap.Geometry = v.Geometry
		}
	}
	if last, ok := s.idx.Last(); ok && last.End > snap.Total {
		snap.Total = last.End
	}
	if s.loadErr != nil {
		snap.Unavailable = s.loadErr.Error()
	}
	return snap
}

// Summary returns duration statistics for the loaded table.
func (s *Session) Summary() timing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Summary()
}

// Table returns the loaded table, nil when none.
func (s *Session) Table() *timing.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}
