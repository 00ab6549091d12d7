package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilawah/versesync/internal/config"
	"github.com/tilawah/versesync/internal/session"
	"github.com/tilawah/versesync/internal/testutil"
	"github.com/tilawah/versesync/internal/timeutil"
	"github.com/tilawah/versesync/internal/timing"
	"github.com/tilawah/versesync/internal/timingsource"
	"github.com/tilawah/versesync/internal/tracker"
)

func TestPlayer_Position(t *testing.T) {
	t0 := time.Unix(1000, 0)
	p := &player{start: 10, end: 20, speed: 1.5, t0: t0}

	assert.Equal(t, 10.0, p.position(t0))
	assert.Equal(t, 13.0, p.position(t0.Add(2*time.Second)))
	assert.Equal(t, 20.0, p.position(t0.Add(time.Hour)), "clamped to the end")
}

func TestPlayer_RunsScenario(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var kinds []string
	s := session.New(session.Config{
		Clock: clock,
		OnEvent: func(ev session.Event) {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, string(ev.Kind))
		},
	})
	defer s.Close()
	gen, err := s.Install(testutil.Table(t, testutil.ScenarioSpans...))
	require.NoError(t, err)

	p := &player{s: s, gen: gen, clock: clock, start: 0, end: s.Snapshot().Total, speed: 4}
	type result struct {
		pos float64
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := p.run(context.Background(), 250*time.Millisecond)
		done <- result{pos, err}
	}()

	var res result
loop:
	for i := 0; i < 10000; i++ {
		select {
		case res = <-done:
			break loop
		default:
		}
		clock.Advance(250 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, res.err)
	assert.InDelta(t, 12.658, res.pos, 1e-9)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, kinds)
	assert.Equal(t, "enter", kinds[0])
	assert.Equal(t, "exit", kinds[len(kinds)-1])
	assert.Equal(t, tracker.StateAfter, s.Snapshot().State)
}

func TestPlayer_StopsOnCancel(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := session.New(session.Config{Clock: clock})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &player{s: s, gen: s.Generation(), clock: clock, start: 3, end: 60, speed: 1}
	pos, err := p.run(ctx, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 3.0, pos)
}

func TestSourceFor(t *testing.T) {
	cfg := config.EmptyConfig()
	_, err := sourceFor(cfg, "")
	assert.ErrorIs(t, err, timingsource.ErrNoSource)

	src, err := sourceFor(cfg, "/tmp/1_alafasy.json")
	require.NoError(t, err)
	ps, ok := src.(*timingsource.PathSource)
	require.True(t, ok)
	assert.Equal(t, "/tmp/1_alafasy.json", ps.Path)

	dir := "/var/timings"
	cfg.TimingDir = &dir
	src, err = sourceFor(cfg, "")
	require.NoError(t, err)
	_, ok = src.(*timingsource.FileSource)
	assert.True(t, ok)
}

func TestWireEventFrom(t *testing.T) {
	ev := session.Event{
		Generation: 3,
		Kind:       tracker.EventEnter,
		Verse:      timing.VerseInterval{Verse: 2, Start: 5.587, End: 12.658},
		Time:       6,
		Display:    4949 * time.Millisecond,
	}
	assert.Equal(t, wireEvent{Generation: 3, Kind: "enter", Verse: 2, Start: 5.587, End: 12.658, Time: 6, DisplayMs: 4949}, wireEventFrom(ev))

	ev.Kind = tracker.EventExit
	ev.Display = 0
	assert.Equal(t, int64(0), wireEventFrom(ev).DisplayMs)
}
