package overlay

import (
	"sort"
	"strconv"
	"sync"

	"github.com/tilawah/versesync/internal/timing"
)

// Shape is one live element on a MemorySurface.
type Shape struct {
	ID      string
	Polygon []timing.Point
	Marker  *timing.Point
}

// MemorySurface is an in-process Surface that records what is drawn.
// It is safe for concurrent use.
type MemorySurface struct {
	mu      sync.Mutex
	shapes  map[string]Shape
	inserts int
	clears  int
}

// NewMemorySurface returns an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{shapes: make(map[string]Shape)}
}

// InsertPolygon adds a region. Inserting an id that is already present
// adds a duplicate entry under a suffixed key, the way a naive renderer
// would stack elements, so tests can detect missing clears.
func (m *MemorySurface) InsertPolygon(id string, polygon []timing.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pts := append([]timing.Point(nil), polygon...)
	m.put(Shape{ID: id, Polygon: pts})
	return nil
}

// InsertMarker adds a marker.
func (m *MemorySurface) InsertMarker(id string, at timing.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := at
	m.put(Shape{ID: id, Marker: &p})
	return nil
}

// ClearRegion removes every element with the given id.
func (m *MemorySurface) ClearRegion(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	for k, s := range m.shapes {
		if s.ID == id {
			delete(m.shapes, k)
		}
	}
	return nil
}

func (m *MemorySurface) put(s Shape) {
	m.inserts++
	key := s.ID
	for n := 1; ; n++ {
		if _, dup := m.shapes[key]; !dup {
			break
		}
		key = s.ID + "#" + strconv.Itoa(n)
	}
	m.shapes[key] = s
}

// Shapes returns the live elements ordered by id.
func (m *MemorySurface) Shapes() []Shape {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Shape, 0, len(m.shapes))
	for _, s := range m.shapes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live elements.
func (m *MemorySurface) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shapes)
}

// Counts returns how many inserts and clears the surface has seen.
func (m *MemorySurface) Counts() (inserts, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts, m.clears
}
