package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty config should validate: %v", err)
	}

	floats := []struct {
		name string
		got  float64
		want float64
	}{
		{"short_max_seconds", cfg.GetShortMaxSeconds(), 3},
		{"short_factor", cfg.GetShortFactor(), 0.8},
		{"short_floor_seconds", cfg.GetShortFloorSeconds(), 2},
		{"medium_max_seconds", cfg.GetMediumMaxSeconds(), 8},
		{"medium_factor", cfg.GetMediumFactor(), 0.7},
		{"medium_floor_seconds", cfg.GetMediumFloorSeconds(), 4},
		{"long_factor", cfg.GetLongFactor(), 0.6},
		{"long_floor_seconds", cfg.GetLongFloorSeconds(), 6},
		{"long_cap_seconds", cfg.GetLongCapSeconds(), 12},
	}
	for _, f := range floats {
		if f.got != f.want {
			t.Errorf("%s = %v, want %v", f.name, f.got, f.want)
		}
	}

	if got := cfg.GetGapPolicy(); got != "suppress" {
		t.Errorf("GetGapPolicy() = %q, want suppress", got)
	}
	if got := cfg.GetFetchTimeout(); got != 15*time.Second {
		t.Errorf("GetFetchTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetTickInterval(); got != 250*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 250ms", got)
	}
	if got := cfg.GetMaxPayloadBytes(); got != 10_000_000 {
		t.Errorf("GetMaxPayloadBytes() = %d, want 10000000", got)
	}
	if got := cfg.GetJournalBuffer(); got != 256 {
		t.Errorf("GetJournalBuffer() = %d, want 256", got)
	}
	if cfg.GetTimingEndpoint() != "" || cfg.GetTimingDir() != "" || cfg.GetJournalPath() != "" {
		t.Errorf("optional paths should default to empty")
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "versesync.json")

	testJSON := `{
  "short_factor": 0.9,
  "long_cap_seconds": 15,
  "gap_policy": "Nearest",
  "timing_endpoint": " https://timings.example/{surah}/{reciter}.json ",
  "fetch_timeout": "3s",
  "tick_interval": "100ms",
  "journal_path": "/tmp/journal.db",
  "journal_buffer": 0
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetShortFactor() != 0.9 {
		t.Errorf("GetShortFactor() = %v, want 0.9", cfg.GetShortFactor())
	}
	if cfg.GetLongCapSeconds() != 15 {
		t.Errorf("GetLongCapSeconds() = %v, want 15", cfg.GetLongCapSeconds())
	}
	// unset keys keep defaults
	if cfg.GetMediumFactor() != 0.7 {
		t.Errorf("GetMediumFactor() = %v, want default 0.7", cfg.GetMediumFactor())
	}
	if cfg.GetGapPolicy() != "nearest" {
		t.Errorf("GetGapPolicy() = %q, want nearest", cfg.GetGapPolicy())
	}
	if cfg.GetTimingEndpoint() != "https://timings.example/{surah}/{reciter}.json" {
		t.Errorf("GetTimingEndpoint() = %q", cfg.GetTimingEndpoint())
	}
	if cfg.GetFetchTimeout() != 3*time.Second {
		t.Errorf("GetFetchTimeout() = %v, want 3s", cfg.GetFetchTimeout())
	}
	if cfg.GetTickInterval() != 100*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 100ms", cfg.GetTickInterval())
	}
	if cfg.GetJournalPath() != "/tmp/journal.db" {
		t.Errorf("GetJournalPath() = %q", cfg.GetJournalPath())
	}
	if cfg.GetJournalBuffer() != 0 {
		t.Errorf("GetJournalBuffer() = %d, want 0", cfg.GetJournalBuffer())
	}
}

func TestLoadConfig_DefaultsFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("defaults file should load: %v", err)
	}
	empty := EmptyConfig()
	if cfg.GetShortFactor() != empty.GetShortFactor() ||
		cfg.GetLongCapSeconds() != empty.GetLongCapSeconds() ||
		cfg.GetGapPolicy() != empty.GetGapPolicy() ||
		cfg.GetTickInterval() != empty.GetTickInterval() {
		t.Errorf("defaults file disagrees with built-in defaults")
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), ".json") {
			t.Errorf("expected extension error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(tmpDir, "absent.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("too large", func(t *testing.T) {
		path := filepath.Join(tmpDir, "big.json")
		big := make([]byte, 1024*1024+1)
		for i := range big {
			big[i] = ' '
		}
		if err := os.WriteFile(path, big, 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "too large") {
			t.Errorf("expected size error, got %v", err)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		if err := os.WriteFile(path, []byte(`{"short_factor":`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "parse") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(tmpDir, "invalid.json")
		if err := os.WriteFile(path, []byte(`{"gap_policy": "teleport"}`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	s := func(v string) *string { return &v }
	i64 := func(v int64) *int64 { return &v }
	i := func(v int) *int { return &v }

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero factor", Config{ShortFactor: f(0)}, "short_factor"},
		{"factor above one", Config{LongFactor: f(1.5)}, "long_factor"},
		{"factor of one is fine", Config{MediumFactor: f(1)}, ""},
		{"negative floor", Config{MediumFloorSeconds: f(-1)}, "medium_floor_seconds"},
		{"bands out of order", Config{ShortMaxSeconds: f(9)}, "short_max_seconds"},
		{"floor above cap", Config{LongFloorSeconds: f(20)}, "long_cap_seconds"},
		{"unknown gap policy", Config{GapPolicy: s("skip")}, "gap_policy"},
		{"hold is accepted", Config{GapPolicy: s("hold")}, ""},
		{"endpoint without placeholders", Config{TimingEndpoint: s("https://x/{surah}.json")}, "timing_endpoint"},
		{"bad timeout", Config{FetchTimeout: s("soon")}, "fetch_timeout"},
		{"negative tick", Config{TickInterval: s("-1s")}, "tick_interval"},
		{"zero payload", Config{MaxPayloadBytes: i64(0)}, "max_payload_bytes"},
		{"negative buffer", Config{JournalBuffer: i(-1)}, "journal_buffer"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tc.wantErr)
			}
		})
	}
}

func TestGetDurations_FallBackOnParseError(t *testing.T) {
	bad := "nope"
	cfg := &Config{FetchTimeout: &bad, TickInterval: &bad}
	if cfg.GetFetchTimeout() != 15*time.Second {
		t.Errorf("GetFetchTimeout() = %v, want default", cfg.GetFetchTimeout())
	}
	if cfg.GetTickInterval() != 250*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want default", cfg.GetTickInterval())
	}
}
