package timing_test

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilawah/versesync/internal/testutil"
	"github.com/tilawah/versesync/internal/timing"
)

var key = timing.Key{Surah: 2, Reciter: "husary"}

func TestNormalize_ConvertsAndOrders(t *testing.T) {
	t.Parallel()

	raw := []timing.RawEntry{
		{Ayah: 2, StartTimeMs: 5587, EndTimeMs: 12658},
		{Ayah: 0, StartTimeMs: 0, EndTimeMs: 3000}, // basmala
		{Ayah: 1, StartTimeMs: 0, EndTimeMs: 5587},
	}

	tbl, rep, err := timing.NormalizeWithReport(key, raw)
	require.NoError(t, err)

	want := []timing.VerseInterval{
		{Verse: 1, Start: 0, End: 5.587},
		{Verse: 2, Start: 5.587, End: 12.658},
	}
	if diff := cmp.Diff(want, tbl.Intervals()); diff != "" {
		t.Errorf("intervals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, key, tbl.Key())
	assert.Equal(t, timing.Report{Input: 3, Preamble: 1, Kept: 2}, rep)
	assert.Equal(t, 1, rep.Dropped())
}

func TestNormalize_DropsInvalidEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry timing.RawEntry
	}{
		{"end equals start", timing.RawEntry{Ayah: 3, StartTimeMs: 1000, EndTimeMs: 1000}},
		{"end before start", timing.RawEntry{Ayah: 3, StartTimeMs: 2000, EndTimeMs: 1000}},
		{"NaN start", timing.RawEntry{Ayah: 3, StartTimeMs: math.NaN(), EndTimeMs: 1000}},
		{"infinite end", timing.RawEntry{Ayah: 3, StartTimeMs: 0, EndTimeMs: math.Inf(1)}},
		{"negative start", timing.RawEntry{Ayah: 3, StartTimeMs: -10, EndTimeMs: 1000}},
		{"negative ayah", timing.RawEntry{Ayah: -1, StartTimeMs: 0, EndTimeMs: 1000}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			good := timing.RawEntry{Ayah: 1, StartTimeMs: 0, EndTimeMs: 900}
			tbl, rep, err := timing.NormalizeWithReport(key, []timing.RawEntry{good, tc.entry})
			require.NoError(t, err)
			assert.Equal(t, 1, tbl.Len())
			assert.Equal(t, 1, tbl.At(0).Verse)
			assert.Equal(t, 1, rep.Dropped())
		})
	}
}

func TestNormalize_EmptyIsNormalizationError(t *testing.T) {
	t.Parallel()

	inputs := map[string][]timing.RawEntry{
		"nil":            nil,
		"preamble only":  {{Ayah: 0, StartTimeMs: 0, EndTimeMs: 4000}},
		"all malformed":  {{Ayah: 1, StartTimeMs: math.NaN(), EndTimeMs: math.NaN()}},
		"zero durations": {{Ayah: 1, StartTimeMs: 10, EndTimeMs: 10}},
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			tbl, err := timing.Normalize(key, raw)
			assert.Nil(t, tbl)
			require.Error(t, err)
			assert.True(t, errors.Is(err, timing.ErrEmpty))
			assert.True(t, timing.IsUnavailable(err))

			var ne *timing.NormalizationError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, timing.KindEmpty, ne.Kind)
			assert.Equal(t, key, ne.Key)
		})
	}
}

func TestNormalize_DuplicatesAndOverlaps(t *testing.T) {
	t.Parallel()

	raw := []timing.RawEntry{
		{Ayah: 1, StartTimeMs: 0, EndTimeMs: 4000},
		{Ayah: 1, StartTimeMs: 4000, EndTimeMs: 6000}, // duplicate ayah
		{Ayah: 2, StartTimeMs: 3000, EndTimeMs: 7000}, // starts inside verse 1
		{Ayah: 3, StartTimeMs: 7000, EndTimeMs: 9000},
	}
	tbl, rep, err := timing.NormalizeWithReport(key, raw)
	require.NoError(t, err)

	verses := []int{}
	for _, v := range tbl.Intervals() {
		verses = append(verses, v.Verse)
	}
	assert.Equal(t, []int{1, 3}, verses)
	assert.Equal(t, 1, rep.Duplicate)
	assert.Equal(t, 1, rep.Overlap)
}

func TestNormalize_Geometry(t *testing.T) {
	t.Parallel()

	raw := []timing.RawEntry{
		{Ayah: 1, StartTimeMs: 0, EndTimeMs: 1000, Polygon: "0,0 10,0 10,10", X: "5", Y: "7", Page: "3"},
		{Ayah: 2, StartTimeMs: 1000, EndTimeMs: 2000, Polygon: "garbage"},
		{Ayah: 3, StartTimeMs: 2000, EndTimeMs: 3000, Polygon: "0,0 10,0 10,10", X: "n/a", Y: "7"},
		{Ayah: 4, StartTimeMs: 3000, EndTimeMs: 4000},
	}
	tbl, rep, err := timing.NormalizeWithReport(key, raw)
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, 1, rep.BadGeometry)

	v1 := tbl.At(0)
	require.NotNil(t, v1.Geometry)
	assert.True(t, v1.Geometry.HasRegion())
	assert.Equal(t, &timing.Point{X: 5, Y: 7}, v1.Geometry.Anchor)
	assert.Equal(t, "3", v1.PageRef)

	assert.Nil(t, tbl.At(1).Geometry, "malformed polygon drops geometry, keeps timing")

	v3 := tbl.At(2)
	require.NotNil(t, v3.Geometry)
	assert.Nil(t, v3.Geometry.Anchor, "unparseable anchor is omitted")

	assert.Nil(t, tbl.At(3).Geometry)
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	raw := testutil.RawEntries(testutil.ScenarioSpans...)
	tbl, err := timing.Normalize(key, raw)
	require.NoError(t, err)

	raw[0].Ayah = 99
	assert.Equal(t, 1, tbl.At(0).Verse)

	copied := tbl.Intervals()
	copied[0].Verse = 42
	assert.Equal(t, 1, tbl.At(0).Verse)
}

func TestTable_NilSafe(t *testing.T) {
	t.Parallel()

	var tbl *timing.Table
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.Intervals())
	assert.Equal(t, timing.Key{}, tbl.Key())
	assert.Equal(t, -1, tbl.IndexOfVerse(1))
}

func TestParsePolygon(t *testing.T) {
	t.Parallel()

	pts, err := timing.ParsePolygon("1,2 3,4\n5,6")
	require.NoError(t, err)
	assert.Equal(t, []timing.Point{{1, 2}, {3, 4}, {5, 6}}, pts)
	assert.Equal(t, "1,2 3,4 5,6", timing.FormatPolygon(pts))

	for _, bad := range []string{"", "1,2 3,4", "1,2 3,4 5", "1,2 3,x 5,6", "NaN,1 2,3 4,5"} {
		_, err := timing.ParsePolygon(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
