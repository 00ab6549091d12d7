// Package testutil provides shared test fixtures for timing tables.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/tilawah/versesync/internal/timing"
)

// Span is a verse interval in seconds.
type Span struct {
	Start, End float64
}

// ScenarioKey is the recitation used by the fixtures below.
var ScenarioKey = timing.Key{Surah: 1, Reciter: "alafasy"}

// ScenarioSpans is the two-verse table [0, 5.587) and [5.587, 12.658).
var ScenarioSpans = []Span{{0, 5.587}, {5.587, 12.658}}

// RawEntries builds raw timing records for consecutive ayahs starting at 1.
// Every record gets a small square polygon and an anchor so the overlay
// has something to draw.
func RawEntries(spans ...Span) []timing.RawEntry {
	out := make([]timing.RawEntry, 0, len(spans))
	for i, s := range spans {
		y := float64(i * 40)
		out = append(out, timing.RawEntry{
			Ayah:        i + 1,
			StartTimeMs: s.Start * 1000,
			EndTimeMs:   s.End * 1000,
			Polygon: timing.FormatPolygon([]timing.Point{
				{X: 0, Y: y}, {X: 100, Y: y}, {X: 100, Y: y + 30}, {X: 0, Y: y + 30},
			}),
			X:    "95",
			Y:    "15",
			Page: "page-001",
		})
	}
	return out
}

// Table normalizes spans into a table, failing the test on error.
func Table(t testing.TB, spans ...Span) *timing.Table {
	t.Helper()
	tbl, err := timing.Normalize(ScenarioKey, RawEntries(spans...))
	if err != nil {
		t.Fatalf("normalize fixture: %v", err)
	}
	return tbl
}

// Index is Table followed by NewIndex.
func Index(t testing.TB, spans ...Span) *timing.Index {
	t.Helper()
	return timing.NewIndex(Table(t, spans...))
}

// Payload renders raw entries the way the timing service sends them.
func Payload(t testing.TB, entries []timing.RawEntry) []byte {
	t.Helper()
	type wire struct {
		Ayah      int     `json:"ayah"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
		Polygon   string  `json:"polygon,omitempty"`
		X         string  `json:"x,omitempty"`
		Y         string  `json:"y,omitempty"`
		Page      string  `json:"page,omitempty"`
	}
	ws := make([]wire, 0, len(entries))
	for _, e := range entries {
		ws = append(ws, wire{e.Ayah, e.StartTimeMs, e.EndTimeMs, e.Polygon, e.X, e.Y, e.Page})
	}
	b, err := json.Marshal(ws)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

// UniformSpans returns n back-to-back verses of the given length.
func UniformSpans(n int, length float64) []Span {
	spans := make([]Span, n)
	for i := range spans {
		spans[i] = Span{float64(i) * length, float64(i+1) * length}
	}
	return spans
}
