package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file shipped with
// the repository. Every field is optional; Get* accessors supply defaults.
const DefaultConfigPath = "config/versesync.defaults.json"

// Config holds the engine tuning and the collaborators' settings.
// Fields are pointers so a partial file only overrides what it names.
type Config struct {
	// Highlight display bands (seconds and factors)
	ShortMaxSeconds    *float64 `json:"short_max_seconds,omitempty"`
	ShortFactor        *float64 `json:"short_factor,omitempty"`
	ShortFloorSeconds  *float64 `json:"short_floor_seconds,omitempty"`
	MediumMaxSeconds   *float64 `json:"medium_max_seconds,omitempty"`
	MediumFactor       *float64 `json:"medium_factor,omitempty"`
	MediumFloorSeconds *float64 `json:"medium_floor_seconds,omitempty"`
	LongFactor         *float64 `json:"long_factor,omitempty"`
	LongFloorSeconds   *float64 `json:"long_floor_seconds,omitempty"`
	LongCapSeconds     *float64 `json:"long_cap_seconds,omitempty"`

	// Tracker params
	GapPolicy *string `json:"gap_policy,omitempty"` // suppress | hold | nearest

	// Timing source params
	TimingEndpoint  *string `json:"timing_endpoint,omitempty"` // URL template with {surah} and {reciter}
	TimingDir       *string `json:"timing_dir,omitempty"`
	FetchTimeout    *string `json:"fetch_timeout,omitempty"` // duration string like "15s"
	MaxPayloadBytes *int64  `json:"max_payload_bytes,omitempty"`

	// Playback simulation params
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "250ms"

	// Journal params
	JournalPath   *string `json:"journal_path,omitempty"`
	JournalBuffer *int    `json:"journal_buffer,omitempty"`
}

// GapPolicies lists the accepted gap_policy values.
var GapPolicies = []string{"suppress", "hold", "nearest"}

// EmptyConfig returns a Config with all fields set to nil, which means
// every Get* accessor returns its default.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	for name, f := range map[string]float64{
		"short_factor":  c.GetShortFactor(),
		"medium_factor": c.GetMediumFactor(),
		"long_factor":   c.GetLongFactor(),
	} {
		if f <= 0 || f > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, f)
		}
	}

	for name, s := range map[string]float64{
		"short_max_seconds":    c.GetShortMaxSeconds(),
		"short_floor_seconds":  c.GetShortFloorSeconds(),
		"medium_max_seconds":   c.GetMediumMaxSeconds(),
		"medium_floor_seconds": c.GetMediumFloorSeconds(),
		"long_floor_seconds":   c.GetLongFloorSeconds(),
		"long_cap_seconds":     c.GetLongCapSeconds(),
	} {
		if s < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", name, s)
		}
	}

	if c.GetShortMaxSeconds() >= c.GetMediumMaxSeconds() {
		return fmt.Errorf("short_max_seconds (%g) must be below medium_max_seconds (%g)",
			c.GetShortMaxSeconds(), c.GetMediumMaxSeconds())
	}
	if c.GetLongFloorSeconds() > c.GetLongCapSeconds() {
		return fmt.Errorf("long_floor_seconds (%g) must not exceed long_cap_seconds (%g)",
			c.GetLongFloorSeconds(), c.GetLongCapSeconds())
	}

	if c.GapPolicy != nil {
		valid := false
		for _, p := range GapPolicies {
			if strings.EqualFold(*c.GapPolicy, p) {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("gap_policy must be one of %s, got %q", strings.Join(GapPolicies, ", "), *c.GapPolicy)
		}
	}

	if ep := c.GetTimingEndpoint(); ep != "" {
		if !strings.Contains(ep, "{surah}") || !strings.Contains(ep, "{reciter}") {
			return fmt.Errorf("timing_endpoint must contain {surah} and {reciter}, got %q", ep)
		}
	}

	for name, d := range map[string]*string{"fetch_timeout": c.FetchTimeout, "tick_interval": c.TickInterval} {
		if d == nil || *d == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *d)
		}
	}

	if c.MaxPayloadBytes != nil && *c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max_payload_bytes must be positive, got %d", *c.MaxPayloadBytes)
	}
	if c.JournalBuffer != nil && *c.JournalBuffer < 0 {
		return fmt.Errorf("journal_buffer must be non-negative, got %d", *c.JournalBuffer)
	}

	return nil
}

// GetShortMaxSeconds returns the upper bound of the short-verse band.
func (c *Config) GetShortMaxSeconds() float64 {
	if c.ShortMaxSeconds == nil {
		return 3
	}
	return *c.ShortMaxSeconds
}

// GetShortFactor returns the short_factor value or the default.
func (c *Config) GetShortFactor() float64 {
	if c.ShortFactor == nil {
		return 0.8
	}
	return *c.ShortFactor
}

// GetShortFloorSeconds returns the short_floor_seconds value or the default.
func (c *Config) GetShortFloorSeconds() float64 {
	if c.ShortFloorSeconds == nil {
		return 2
	}
	return *c.ShortFloorSeconds
}

// GetMediumMaxSeconds returns the upper bound of the medium-verse band.
func (c *Config) GetMediumMaxSeconds() float64 {
	if c.MediumMaxSeconds == nil {
		return 8
	}
	return *c.MediumMaxSeconds
}

// GetMediumFactor returns the medium_factor value or the default.
func (c *Config) GetMediumFactor() float64 {
	if c.MediumFactor == nil {
		return 0.7
	}
	return *c.MediumFactor
}

// GetMediumFloorSeconds returns the medium_floor_seconds value or the default.
func (c *Config) GetMediumFloorSeconds() float64 {
	if c.MediumFloorSeconds == nil {
		return 4
	}
	return *c.MediumFloorSeconds
}

// GetLongFactor returns the long_factor value or the default.
func (c *Config) GetLongFactor() float64 {
	if c.LongFactor == nil {
		return 0.6
	}
	return *c.LongFactor
}

// GetLongFloorSeconds returns the long_floor_seconds value or the default.
func (c *Config) GetLongFloorSeconds() float64 {
	if c.LongFloorSeconds == nil {
		return 6
	}
	return *c.LongFloorSeconds
}

// GetLongCapSeconds returns the long_cap_seconds value or the default.
func (c *Config) GetLongCapSeconds() float64 {
	if c.LongCapSeconds == nil {
		return 12
	}
	return *c.LongCapSeconds
}

// GetGapPolicy returns the lower-cased gap_policy or "suppress".
func (c *Config) GetGapPolicy() string {
	if c.GapPolicy == nil || *c.GapPolicy == "" {
		return "suppress"
	}
	return strings.ToLower(*c.GapPolicy)
}

// GetTimingEndpoint returns the timing URL template, empty when unset.
func (c *Config) GetTimingEndpoint() string {
	if c.TimingEndpoint == nil {
		return ""
	}
	return strings.TrimSpace(*c.TimingEndpoint)
}

// GetTimingDir returns the directory of timing files, empty when unset.
func (c *Config) GetTimingDir() string {
	if c.TimingDir == nil {
		return ""
	}
	return *c.TimingDir
}

// GetFetchTimeout parses and returns the FetchTimeout as a time.Duration.
func (c *Config) GetFetchTimeout() time.Duration {
	if c.FetchTimeout == nil || *c.FetchTimeout == "" {
		return 15 * time.Second // default
	}
	d, err := time.ParseDuration(*c.FetchTimeout)
	if err != nil {
		return 15 * time.Second // default on parse error
	}
	return d
}

// GetMaxPayloadBytes returns the timing payload size limit.
func (c *Config) GetMaxPayloadBytes() int64 {
	if c.MaxPayloadBytes == nil {
		return 10_000_000
	}
	return *c.MaxPayloadBytes
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *Config) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}

// GetJournalPath returns the sqlite journal path, empty when journaling is off.
func (c *Config) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}

// GetJournalBuffer returns the journal queue length.
func (c *Config) GetJournalBuffer() int {
	if c.JournalBuffer == nil {
		return 256
	}
	return *c.JournalBuffer
}
