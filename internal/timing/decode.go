package timing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// flexNumber decodes a JSON number, a numeric string or null. Anything
// else leaves it invalid instead of failing the whole payload, so one bad
// record is dropped by Normalize rather than losing the recitation.
type flexNumber struct {
	v     float64
	valid bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.v, n.valid = f, true
	return nil
}

func (n flexNumber) orNaN() float64 {
	if !n.valid {
		return math.NaN()
	}
	return n.v
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*s = ""
	case strings.HasPrefix(raw, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		*s = flexString(str)
	default:
		*s = flexString(raw)
	}
	return nil
}

// wireEntry mirrors one record of the timing endpoint. Both the short
// (start_time) and explicit (start_time_ms) field names carry milliseconds.
type wireEntry struct {
	Ayah        flexNumber `json:"ayah"`
	StartTime   flexNumber `json:"start_time"`
	EndTime     flexNumber `json:"end_time"`
	StartTimeMs flexNumber `json:"start_time_ms"`
	EndTimeMs   flexNumber `json:"end_time_ms"`
	Polygon     flexString `json:"polygon"`
	X           flexString `json:"x"`
	Y           flexString `json:"y"`
	Page        flexString `json:"page"`
}

type wireEnvelope struct {
	Timings []wireEntry `json:"timings"`
}

func (w wireEntry) toRaw() RawEntry {
	start := w.StartTimeMs
	if !start.valid {
		start = w.StartTime
	}
	end := w.EndTimeMs
	if !end.valid {
		end = w.EndTime
	}

	ayah := 0
	if w.Ayah.valid && w.Ayah.v == math.Trunc(w.Ayah.v) && math.Abs(w.Ayah.v) < math.MaxInt32 {
		ayah = int(w.Ayah.v)
	}

	return RawEntry{
		Ayah:        ayah,
		StartTimeMs: start.orNaN(),
		EndTimeMs:   end.orNaN(),
		Polygon:     strings.TrimSpace(string(w.Polygon)),
		X:           strings.TrimSpace(string(w.X)),
		Y:           strings.TrimSpace(string(w.Y)),
		Page:        strings.TrimSpace(string(w.Page)),
	}
}

// DecodeRaw parses a timing payload: either a JSON array of records or an
// object with a "timings" array. Unknown fields are ignored. A blank payload
// yields a KindEmpty NormalizationError, and one that is not JSON of either
// shape a KindMalformed one.
func DecodeRaw(b []byte) ([]RawEntry, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, &NormalizationError{Kind: KindEmpty, Err: fmt.Errorf("empty payload")}
	}

	var wire []wireEntry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, &NormalizationError{Kind: KindMalformed, Err: fmt.Errorf("decode timing array: %w", err)}
		}
	case '{':
		var env wireEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &NormalizationError{Kind: KindMalformed, Err: fmt.Errorf("decode timing object: %w", err)}
		}
		wire = env.Timings
	default:
		return nil, &NormalizationError{Kind: KindMalformed, Err: fmt.Errorf("unexpected payload start %q", trimmed[0])}
	}

	out := make([]RawEntry, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toRaw())
	}
	return out, nil
}
