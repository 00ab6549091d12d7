package timing

import (
	"sort"
	"strconv"
	"strings"
)

// Report counts what Normalize kept and why it dropped the rest.
type Report struct {
	Input       int // raw records seen
	Preamble    int // ayah <= 0 (basmala/preamble)
	Invalid     int // non-finite times or end <= start
	Duplicate   int // repeated ayah number, later copy dropped
	Overlap     int // start before the previous verse's end
	BadGeometry int // kept for timing, geometry discarded
	Kept        int
}

// Dropped returns the number of raw records that did not make it into the table.
func (r Report) Dropped() int {
	return r.Input - r.Kept
}

// Normalize validates raw timing records and builds the Table for key.
// It drops individual bad records and only fails, with a KindEmpty
// NormalizationError, when nothing usable remains.
func Normalize(key Key, raw []RawEntry) (*Table, error) {
	t, _, err := NormalizeWithReport(key, raw)
	return t, err
}

// NormalizeWithReport is Normalize plus the per-reason drop counts.
func NormalizeWithReport(key Key, raw []RawEntry) (*Table, Report, error) {
	rep := Report{Input: len(raw)}

	candidates := make([]VerseInterval, 0, len(raw))
	for _, e := range raw {
		if e.Ayah <= 0 {
			rep.Preamble++
			continue
		}
		if !isFinite(e.StartTimeMs) || !isFinite(e.EndTimeMs) || e.StartTimeMs < 0 || e.EndTimeMs <= e.StartTimeMs {
			rep.Invalid++
			continue
		}

		v := VerseInterval{
			Verse:   e.Ayah,
			Start:   e.StartTimeMs / 1000,
			End:     e.EndTimeMs / 1000,
			PageRef: e.Page,
		}
		geom, ok := parseGeometry(e)
		if ok {
			v.Geometry = geom
		} else if e.Polygon != "" {
			rep.BadGeometry++
		}
		candidates = append(candidates, v)
	}

	// The service emits verses in order, but input is not trusted.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Verse < candidates[j].Verse
	})

	intervals := make([]VerseInterval, 0, len(candidates))
	for _, v := range candidates {
		if n := len(intervals); n > 0 {
			prev := intervals[n-1]
			if v.Verse == prev.Verse {
				rep.Duplicate++
				continue
			}
			if v.Start < prev.End {
				rep.Overlap++
				continue
			}
		}
		intervals = append(intervals, v)
	}

	rep.Kept = len(intervals)
	if rep.Kept == 0 {
		return nil, rep, &NormalizationError{Kind: KindEmpty, Key: key}
	}
	return &Table{key: key, intervals: intervals}, rep, nil
}

func parseGeometry(e RawEntry) (*Geometry, bool) {
	if e.Polygon == "" {
		return nil, false
	}
	poly, err := ParsePolygon(e.Polygon)
	if err != nil {
		return nil, false
	}
	g := &Geometry{Polygon: poly}
	if x, y, ok := parseAnchor(e.X, e.Y); ok {
		g.Anchor = &Point{X: x, Y: y}
	}
	return g, true
}

func parseAnchor(xs, ys string) (float64, float64, bool) {
	if xs == "" || ys == "" {
		return 0, 0, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil || !isFinite(x) {
		return 0, 0, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil || !isFinite(y) {
		return 0, 0, false
	}
	return x, y, true
}
