package highlight

import (
	"math"
	"time"

	"github.com/tilawah/versesync/internal/config"
)

// Bands maps a verse's recited duration onto how long its highlight stays
// up. All values are seconds.
//
//	d <= ShortMax:            max(d*ShortFactor, ShortFloor)
//	ShortMax < d <= MediumMax: max(d*MediumFactor, MediumFloor)
//	d > MediumMax:            clamp(d*LongFactor, LongFloor, LongCap)
type Bands struct {
	ShortMax    float64
	ShortFactor float64
	ShortFloor  float64

	MediumMax    float64
	MediumFactor float64
	MediumFloor  float64

	LongFactor float64
	LongFloor  float64
	LongCap    float64
}

// DefaultBands returns the standard display bands.
func DefaultBands() Bands {
	return BandsFromConfig(config.EmptyConfig())
}

// BandsFromConfig builds Bands from the config accessors.
func BandsFromConfig(cfg *config.Config) Bands {
	return Bands{
		ShortMax:     cfg.GetShortMaxSeconds(),
		ShortFactor:  cfg.GetShortFactor(),
		ShortFloor:   cfg.GetShortFloorSeconds(),
		MediumMax:    cfg.GetMediumMaxSeconds(),
		MediumFactor: cfg.GetMediumFactor(),
		MediumFloor:  cfg.GetMediumFloorSeconds(),
		LongFactor:   cfg.GetLongFactor(),
		LongFloor:    cfg.GetLongFloorSeconds(),
		LongCap:      cfg.GetLongCapSeconds(),
	}
}

// DisplaySeconds returns the highlight duration in seconds for a verse of
// d seconds. Non-finite or negative input is treated as zero.
func (b Bands) DisplaySeconds(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		d = 0
	}
	switch {
	case d <= b.ShortMax:
		return math.Max(d*b.ShortFactor, b.ShortFloor)
	case d <= b.MediumMax:
		return math.Max(d*b.MediumFactor, b.MediumFloor)
	}
	return math.Min(math.Max(d*b.LongFactor, b.LongFloor), b.LongCap)
}

// DisplayDuration is DisplaySeconds as a time.Duration.
func (b Bands) DisplayDuration(d float64) time.Duration {
	return time.Duration(b.DisplaySeconds(d) * float64(time.Second))
}
