// Package timingsource fetches raw verse timing records for a recitation,
// either from the timing service over HTTP or from local JSON files.
package timingsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tilawah/versesync/internal/config"
	"github.com/tilawah/versesync/internal/fsutil"
	"github.com/tilawah/versesync/internal/httputil"
	"github.com/tilawah/versesync/internal/security"
	"github.com/tilawah/versesync/internal/timing"
)

// Source fetches the raw timing records for one recitation. Failures are
// *timing.NormalizationError values so callers can fall back to playback
// without highlighting.
type Source interface {
	FetchTiming(ctx context.Context, key timing.Key) ([]timing.RawEntry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, key timing.Key) ([]timing.RawEntry, error)

// FetchTiming calls f.
func (f SourceFunc) FetchTiming(ctx context.Context, key timing.Key) ([]timing.RawEntry, error) {
	return f(ctx, key)
}

// ErrNoSource is returned by FromConfig when neither an endpoint nor a
// directory is configured.
var ErrNoSource = errors.New("no timing endpoint or timing directory configured")

// HTTPSource fetches timing JSON from an endpoint template such as
// https://host/timings/{surah}/{reciter}.json.
type HTTPSource struct {
	Client   httputil.HTTPClient
	Endpoint string
	MaxBytes int64
	Timeout  time.Duration
}

// HTTPSourceFromConfig builds an HTTPSource from the config. client may be
// nil, in which case a client with the configured timeout is used.
func HTTPSourceFromConfig(cfg *config.Config, client httputil.HTTPClient) (*HTTPSource, error) {
	endpoint := cfg.GetTimingEndpoint()
	if endpoint == "" {
		return nil, ErrNoSource
	}
	if client == nil {
		client = httputil.NewTimeoutClient(cfg.GetFetchTimeout())
	}
	return &HTTPSource{
		Client:   client,
		Endpoint: endpoint,
		MaxBytes: cfg.GetMaxPayloadBytes(),
		Timeout:  cfg.GetFetchTimeout(),
	}, nil
}

// URL expands the endpoint template for key.
func (s *HTTPSource) URL(key timing.Key) string {
	r := strings.NewReplacer(
		"{surah}", strconv.Itoa(key.Surah),
		"{reciter}", url.PathEscape(key.Reciter),
	)
	return r.Replace(s.Endpoint)
}

// FetchTiming implements Source.
func (s *HTTPSource) FetchTiming(ctx context.Context, key timing.Key) ([]timing.RawEntry, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	body, err := httputil.GetLimited(ctx, s.Client, s.URL(key), s.MaxBytes)
	if err != nil {
		return nil, timing.Unavailable(key, err)
	}
	raw, err := timing.DecodeRaw(body)
	if err != nil {
		return nil, withKey(err, key)
	}
	return raw, nil
}

// FileSource reads <Dir>/<surah>_<reciter>.json.
type FileSource struct {
	FS       fsutil.FileSystem
	Dir      string
	MaxBytes int64
}

// NewFileSource returns a FileSource over the OS filesystem.
func NewFileSource(dir string, maxBytes int64) *FileSource {
	return &FileSource{FS: fsutil.OSFileSystem{}, Dir: dir, MaxBytes: maxBytes}
}

// FileName is the file name used for key.
func FileName(key timing.Key) string {
	return fmt.Sprintf("%d_%s.json", key.Surah, key.Reciter)
}

// Path returns the file path for key.
func (s *FileSource) Path(key timing.Key) string {
	return filepath.Join(s.Dir, FileName(key))
}

// FetchTiming implements Source. The context is only checked up front.
func (s *FileSource) FetchTiming(ctx context.Context, key timing.Key) ([]timing.RawEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, timing.Unavailable(key, err)
	}
	if err := security.ValidateReciterID(key.Reciter); err != nil {
		return nil, timing.Unavailable(key, err)
	}
	path := s.Path(key)
	if err := security.ValidatePathWithinDirectory(path, s.Dir); err != nil {
		return nil, timing.Unavailable(key, err)
	}
	return readFile(s.FS, path, s.MaxBytes, key)
}

// PathSource serves a single timing file whatever the key.
type PathSource struct {
	FS       fsutil.FileSystem
	Path     string
	MaxBytes int64
}

// FetchTiming implements Source.
func (s *PathSource) FetchTiming(ctx context.Context, key timing.Key) ([]timing.RawEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, timing.Unavailable(key, err)
	}
	return readFile(s.FS, s.Path, s.MaxBytes, key)
}

func readFile(fsys fsutil.FileSystem, path string, limit int64, key timing.Key) ([]timing.RawEntry, error) {
	body, err := fsutil.ReadFileLimit(fsys, path, limit)
	if err != nil {
		return nil, timing.Unavailable(key, err)
	}
	raw, err := timing.DecodeRaw(body)
	if err != nil {
		return nil, withKey(err, key)
	}
	return raw, nil
}

// Keys lists the recitations available in the directory, ordered by
// surah then reciter. Files not named <surah>_<reciter>.json are skipped.
func (s *FileSource) Keys() ([]timing.Key, error) {
	names, err := s.FS.Glob(filepath.Join(s.Dir, "*_*.json"))
	if err != nil {
		return nil, err
	}
	keys := make([]timing.Key, 0, len(names))
	for _, name := range names {
		base := strings.TrimSuffix(filepath.Base(name), ".json")
		surah, reciter, ok := strings.Cut(base, "_")
		if !ok || reciter == "" {
			continue
		}
		n, err := strconv.Atoi(surah)
		if err != nil || n <= 0 {
			continue
		}
		keys = append(keys, timing.Key{Surah: n, Reciter: reciter})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Surah != keys[j].Surah {
			return keys[i].Surah < keys[j].Surah
		}
		return keys[i].Reciter < keys[j].Reciter
	})
	return keys, nil
}

// FromConfig picks the HTTP source when an endpoint is configured and the
// file source otherwise.
func FromConfig(cfg *config.Config) (Source, error) {
	if cfg.GetTimingEndpoint() != "" {
		src, err := HTTPSourceFromConfig(cfg, nil)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	if dir := cfg.GetTimingDir(); dir != "" {
		return NewFileSource(dir, cfg.GetMaxPayloadBytes()), nil
	}
	return nil, ErrNoSource
}

func withKey(err error, key timing.Key) error {
	var ne *timing.NormalizationError
	if errors.As(err, &ne) {
		cp := *ne
		cp.Key = key
		return &cp
	}
	return timing.Unavailable(key, err)
}
