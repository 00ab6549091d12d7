// Package units formats and parses playback positions for display and
// command-line flags.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatClock renders seconds as m:ss, or h:mm:ss from one hour on.
// Fractions are truncated; negative and non-finite input renders as 0:00.
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatProgress renders "elapsed / total".
func FormatProgress(elapsed, total float64) string {
	return FormatClock(elapsed) + " / " + FormatClock(total)
}

// ParseClock accepts plain seconds ("90", "5.6"), clock notation ("1:30",
// "1:02:03") or a Go duration ("1m30s") and returns seconds.
func ParseClock(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty position")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return f, nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		var total float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid clock %q", s)
			}
			// only the leading field may exceed 59
			if i > 0 && v >= 60 {
				return 0, fmt.Errorf("invalid clock %q", s)
			}
			total = total*60 + v
		}
		return total, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return d.Seconds(), nil
}
