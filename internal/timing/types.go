package timing

import (
	"fmt"
	"math"
)

// Key identifies the recitation a Table was built for.
type Key struct {
	Surah   int    `json:"surah"`
	Reciter string `json:"reciter"`
}

func (k Key) String() string {
	return fmt.Sprintf("surah=%d reciter=%s", k.Surah, k.Reciter)
}

// RawEntry is one record of the timing service payload. Times are in
// milliseconds; missing or unparseable times are NaN.
type RawEntry struct {
	Ayah        int
	StartTimeMs float64
	EndTimeMs   float64
	Polygon     string // "x1,y1 x2,y2 ..." in page coordinates
	X           string // anchor marker position
	Y           string
	Page        string
}

// Point is a position on the rendered page surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Geometry is the highlight region of a verse on its page.
// Geometry values are shared between copies of a VerseInterval and must
// be treated as read-only.
type Geometry struct {
	Polygon []Point `json:"polygon,omitempty"`
	Anchor  *Point  `json:"anchor,omitempty"`
}

// HasRegion reports whether the geometry can be drawn.
func (g *Geometry) HasRegion() bool {
	return g != nil && len(g.Polygon) >= 3
}

// VerseInterval is one recited verse's temporal and spatial footprint.
// Start and End are seconds of audio; Start <= t < End belongs to the verse.
type VerseInterval struct {
	Verse    int       `json:"verse"`
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Geometry *Geometry `json:"geometry,omitempty"`
	PageRef  string    `json:"page,omitempty"`
}

// Duration is the length of the recited verse in seconds.
func (v VerseInterval) Duration() float64 {
	return v.End - v.Start
}

// Contains reports whether t falls inside [Start, End).
func (v VerseInterval) Contains(t float64) bool {
	return v.Start <= t && t < v.End
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Table is an immutable, start-ordered sequence of verse intervals, unique
// by verse number and non-overlapping. Tables are only built by Normalize
// and are replaced wholesale, never modified.
type Table struct {
	key       Key
	intervals []VerseInterval
}

// Key returns the recitation this table was built for.
func (t *Table) Key() Key {
	if t == nil {
		return Key{}
	}
	return t.key
}

// Len returns the number of intervals. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.intervals)
}

// At returns the i-th interval in start order.
func (t *Table) At(i int) VerseInterval {
	return t.intervals[i]
}

// Intervals returns a copy of the interval list.
func (t *Table) Intervals() []VerseInterval {
	if t == nil {
		return nil
	}
	out := make([]VerseInterval, len(t.intervals))
	copy(out, t.intervals)
	return out
}

// IndexOfVerse returns the position of verse in the table, or -1.
func (t *Table) IndexOfVerse(verse int) int {
	for i := 0; i < t.Len(); i++ {
		if t.intervals[i].Verse == verse {
			return i
		}
	}
	return -1
}
