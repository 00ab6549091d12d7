package timing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Index answers "which verse is at time t" over an immutable Table.
// Lookups are binary searches, so long surahs cost O(log n) per tick.
type Index struct {
	table  *Table
	starts []float64
}

// NewIndex builds an index over t. A nil table gives an empty index.
func NewIndex(t *Table) *Index {
	idx := &Index{table: t, starts: make([]float64, t.Len())}
	for i := range idx.starts {
		idx.starts[i] = t.intervals[i].Start
	}
	return idx
}

// Table returns the indexed table.
func (x *Index) Table() *Table {
	if x == nil {
		return nil
	}
	return x.table
}

// Len returns the number of indexed intervals.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.starts)
}

// At returns the i-th interval.
func (x *Index) At(i int) VerseInterval {
	return x.table.intervals[i]
}

// First returns the earliest interval.
func (x *Index) First() (VerseInterval, bool) {
	if x.Len() == 0 {
		return VerseInterval{}, false
	}
	return x.At(0), true
}

// Last returns the latest interval.
func (x *Index) Last() (VerseInterval, bool) {
	if x.Len() == 0 {
		return VerseInterval{}, false
	}
	return x.At(x.Len() - 1), true
}

// FindAt returns the interval with Start <= t < End and its position.
// Times in a gap, before the first verse or at/after the last verse's end
// miss. NaN never matches.
func (x *Index) FindAt(t float64) (int, VerseInterval, bool) {
	n := x.Len()
	if n == 0 || math.IsNaN(t) {
		return -1, VerseInterval{}, false
	}
	// last interval whose start is <= t
	i := sort.Search(n, func(i int) bool { return x.starts[i] > t }) - 1
	if i < 0 {
		return -1, VerseInterval{}, false
	}
	v := x.At(i)
	if t >= v.End {
		return -1, VerseInterval{}, false
	}
	return i, v, true
}

// FindNearest returns the interval whose Start is closest to t. On a tie
// the earlier interval (lower verse number) wins, so a time exactly halfway
// between two verse starts resolves to the verse already being recited.
func (x *Index) FindNearest(t float64) (int, VerseInterval, bool) {
	n := x.Len()
	if n == 0 || math.IsNaN(t) {
		return -1, VerseInterval{}, false
	}
	// first start >= t; the nearest is it or its predecessor
	hi := sort.Search(n, func(i int) bool { return x.starts[i] >= t })
	switch {
	case hi == 0:
		return 0, x.At(0), true
	case hi == n:
		return n - 1, x.At(n - 1), true
	}
	lo := hi - 1
	if math.Abs(t-x.starts[lo]) <= math.Abs(x.starts[hi]-t) {
		return lo, x.At(lo), true
	}
	return hi, x.At(hi), true
}

// Summary describes the durations covered by a table.
type Summary struct {
	Verses       int     `json:"verses"`
	Start        float64 `json:"start"`         // first verse start, seconds
	End          float64 `json:"end"`           // last verse end, seconds
	Recited      float64 `json:"recited"`       // sum of verse durations
	MeanVerse    float64 `json:"mean_verse"`    // seconds
	MedianVerse  float64 `json:"median_verse"`  // seconds
	StdDevVerse  float64 `json:"stddev_verse"`  // seconds
	LongestVerse float64 `json:"longest_verse"` // seconds
	LongestAyah  int     `json:"longest_ayah"`
}

// Summary computes duration statistics for the indexed table.
func (x *Index) Summary() Summary {
	n := x.Len()
	if n == 0 {
		return Summary{}
	}
	durations := make([]float64, n)
	s := Summary{Verses: n, Start: x.At(0).Start, End: x.At(n - 1).End}
	for i := 0; i < n; i++ {
		v := x.At(i)
		d := v.Duration()
		durations[i] = d
		s.Recited += d
		if d > s.LongestVerse {
			s.LongestVerse = d
			s.LongestAyah = v.Verse
		}
	}
	s.MeanVerse = stat.Mean(durations, nil)
	if n > 1 {
		s.StdDevVerse = stat.StdDev(durations, nil)
	}
	sort.Float64s(durations)
	s.MedianVerse = stat.Quantile(0.5, stat.Empirical, durations, nil)
	return s
}
