package main

import (
	"context"
	"math"
	"time"

	"github.com/tilawah/versesync/internal/monitoring"
	"github.com/tilawah/versesync/internal/session"
	"github.com/tilawah/versesync/internal/timeutil"
)

// player stands in for an audio element: it advances a media position at
// speed and reports it to the session on every clock tick.
type player struct {
	s     *session.Session
	gen   uint64
	clock timeutil.Clock

	start float64 // media seconds at t0
	end   float64 // media seconds at which playback ends
	speed float64
	t0    time.Time
}

// position is the media time at wall time now.
func (p *player) position(now time.Time) float64 {
	pos := p.start + now.Sub(p.t0).Seconds()*p.speed
	return math.Min(pos, p.end)
}

// run ticks the session until the end is reached or ctx is done. It
// returns the last media position.
func (p *player) run(ctx context.Context, interval time.Duration) (float64, error) {
	p.t0 = p.clock.Now()
	if err := p.s.Seek(p.gen, p.start); err != nil {
		return p.start, err
	}

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	pos := p.start
	for {
		select {
		case <-ctx.Done():
			return pos, ctx.Err()
		case now := <-ticker.C():
			pos = p.position(now)
			if pos >= p.end {
				monitoring.Debugf("player: reached end at %.3fs", pos)
				return pos, p.s.Ended(p.gen)
			}
			if err := p.s.Tick(p.gen, pos); err != nil {
				return pos, err
			}
		}
	}
}
