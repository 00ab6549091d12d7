package timing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errShortPolygon = errors.New("polygon needs at least 3 points")

// ParsePolygon parses SVG-style point lists such as "10,20 30,40 50,60".
// Commas and whitespace are interchangeable separators; coordinates must
// come in pairs and there must be at least three points.
func ParsePolygon(s string) ([]Point, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("polygon has odd coordinate count %d", len(fields))
	}
	if len(fields) < 6 {
		return nil, errShortPolygon
	}

	pts := make([]Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || !isFinite(x) {
			return nil, fmt.Errorf("polygon x %q: invalid coordinate", fields[i])
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil || !isFinite(y) {
			return nil, fmt.Errorf("polygon y %q: invalid coordinate", fields[i+1])
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}

// FormatPolygon renders points back into the SVG point-list form.
func FormatPolygon(pts []Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
	}
	return b.String()
}
