// Package overlay projects verse geometry and visibility onto a page
// surface as clear/draw instructions.
package overlay

import (
	"errors"
	"fmt"

	"github.com/tilawah/versesync/internal/timing"
)

// Op is the kind of overlay instruction.
type Op string

const (
	OpClear Op = "clear"
	OpDraw  Op = "draw"
)

// Instruction is a one-way rendering command. Draw instructions always
// carry a polygon; Anchor is optional.
type Instruction struct {
	Op      Op             `json:"op"`
	ID      string         `json:"id"`
	Verse   int            `json:"verse,omitempty"`
	Page    string         `json:"page,omitempty"`
	Polygon []timing.Point `json:"polygon,omitempty"`
	Anchor  *timing.Point  `json:"anchor,omitempty"`
}

// MarkerID is the id used for the anchor marker of region id.
func MarkerID(id string) string { return id + "-marker" }

// Surface is the page renderer. Coordinates are those of the stored
// geometry. ClearRegion of an unknown id is not an error.
type Surface interface {
	InsertPolygon(id string, polygon []timing.Point) error
	InsertMarker(id string, at timing.Point) error
	ClearRegion(id string) error
}

// Projector maps a verse and a visibility flag to an instruction keyed by
// one stable highlight id.
type Projector struct {
	id string
}

// NewProjector returns a projector that draws under highlightID.
func NewProjector(highlightID string) *Projector {
	return &Projector{id: highlightID}
}

// ID returns the highlight id.
func (p *Projector) ID() string { return p.id }

// Project returns a draw instruction when visible is set and v has a
// drawable region, and a clear instruction otherwise.
func (p *Projector) Project(v *timing.VerseInterval, visible bool) Instruction {
	if !visible || v == nil || !v.Geometry.HasRegion() {
		return Instruction{Op: OpClear, ID: p.id}
	}
	in := Instruction{
		Op:      OpDraw,
		ID:      p.id,
		Verse:   v.Verse,
		Page:    v.PageRef,
		Polygon: v.Geometry.Polygon,
	}
	if v.Geometry.Anchor != nil {
		a := *v.Geometry.Anchor
		in.Anchor = &a
	}
	return in
}

// Apply executes in against s. Both the region and its marker are cleared
// before anything is inserted, so applying an instruction twice leaves the
// same single region.
func Apply(s Surface, in Instruction) error {
	if s == nil {
		return nil
	}
	var errs []error
	if err := s.ClearRegion(in.ID); err != nil {
		errs = append(errs, fmt.Errorf("clear region %s: %w", in.ID, err))
	}
	if err := s.ClearRegion(MarkerID(in.ID)); err != nil {
		errs = append(errs, fmt.Errorf("clear marker %s: %w", in.ID, err))
	}
	// never draw over a region that failed to clear
	if in.Op != OpDraw || len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := s.InsertPolygon(in.ID, in.Polygon); err != nil {
		return fmt.Errorf("insert polygon %s: %w", in.ID, err)
	}
	if in.Anchor != nil {
		if err := s.InsertMarker(MarkerID(in.ID), *in.Anchor); err != nil {
			return fmt.Errorf("insert marker %s: %w", in.ID, err)
		}
	}
	return nil
}
