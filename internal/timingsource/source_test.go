package timingsource

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilawah/versesync/internal/config"
	"github.com/tilawah/versesync/internal/fsutil"
	"github.com/tilawah/versesync/internal/httputil"
	"github.com/tilawah/versesync/internal/testutil"
	"github.com/tilawah/versesync/internal/timing"
)

const endpoint = "https://timings.test/api/{surah}/{reciter}.json"

func newHTTPSource(client httputil.HTTPClient) *HTTPSource {
	return &HTTPSource{Client: client, Endpoint: endpoint, MaxBytes: 1 << 20, Timeout: time.Second}
}

func TestHTTPSource_Fetch(t *testing.T) {
	t.Parallel()

	payload := testutil.Payload(t, testutil.RawEntries(testutil.ScenarioSpans...))
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, string(payload))
	src := newHTTPSource(mock)

	raw, err := src.FetchTiming(context.Background(), testutil.ScenarioKey)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, 1, raw[0].Ayah)
	assert.InDelta(t, 5587.0, raw[0].EndTimeMs, 1e-6)

	require.Equal(t, 1, mock.RequestCount())
	req := mock.GetRequest(0)
	assert.Equal(t, "https://timings.test/api/1/alafasy.json", req.URL.String())
	_, hasDeadline := req.Context().Deadline()
	assert.True(t, hasDeadline, "fetch is bounded by the timeout")
}

func TestHTTPSource_URLEscapesReciter(t *testing.T) {
	t.Parallel()

	src := newHTTPSource(nil)
	assert.Equal(t, "https://timings.test/api/114/abdul%20basit.json",
		src.URL(timing.Key{Surah: 114, Reciter: "abdul basit"}))
}

func TestHTTPSource_FailuresAreNormalizationErrors(t *testing.T) {
	t.Parallel()

	key := timing.Key{Surah: 2, Reciter: "husary"}
	tests := []struct {
		name     string
		setup    func(*httputil.MockHTTPClient)
		maxBytes int64
		wantKind timing.ErrorKind
	}{
		{"network error", func(m *httputil.MockHTTPClient) { m.AddErrorResponse(errors.New("dial tcp: refused")) }, 0, timing.KindUnavailable},
		{"server error", func(m *httputil.MockHTTPClient) { m.AddResponse(http.StatusBadGateway, "") }, 0, timing.KindUnavailable},
		{"not found", func(m *httputil.MockHTTPClient) { m.AddResponse(http.StatusNotFound, "{}") }, 0, timing.KindUnavailable},
		{"oversized", func(m *httputil.MockHTTPClient) { m.AddResponse(http.StatusOK, strings.Repeat(" ", 100)+"[]") }, 10, timing.KindUnavailable},
		{"html body", func(m *httputil.MockHTTPClient) { m.AddResponse(http.StatusOK, "<html>oops</html>") }, 0, timing.KindMalformed},
		{"truncated json", func(m *httputil.MockHTTPClient) { m.AddResponse(http.StatusOK, `[{"ayah":1`) }, 0, timing.KindMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient()
			tc.setup(mock)
			src := newHTTPSource(mock)
			src.MaxBytes = tc.maxBytes

			raw, err := src.FetchTiming(context.Background(), key)
			assert.Nil(t, raw)

			var ne *timing.NormalizationError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tc.wantKind, ne.Kind)
			assert.Equal(t, key, ne.Key)
			assert.True(t, timing.IsUnavailable(err))
		})
	}
}

func TestHTTPSource_EmptyPayloadDecodes(t *testing.T) {
	t.Parallel()

	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, "[]")
	raw, err := newHTTPSource(mock).FetchTiming(context.Background(), testutil.ScenarioKey)
	require.NoError(t, err)
	assert.Empty(t, raw)

	_, err = timing.Normalize(testutil.ScenarioKey, raw)
	assert.ErrorIs(t, err, timing.ErrEmpty)
}

func TestHTTPSource_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newHTTPSource(httputil.NewMockHTTPClient()).FetchTiming(ctx, testutil.ScenarioKey)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, timing.IsUnavailable(err))
}

func TestHTTPSourceFromConfig(t *testing.T) {
	t.Parallel()

	_, err := HTTPSourceFromConfig(config.EmptyConfig(), nil)
	assert.ErrorIs(t, err, ErrNoSource)

	ep := endpoint
	timeout := "2s"
	cfg := config.EmptyConfig()
	cfg.TimingEndpoint = &ep
	cfg.FetchTimeout = &timeout

	src, err := HTTPSourceFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, endpoint, src.Endpoint)
	assert.Equal(t, 2*time.Second, src.Timeout)
	assert.Equal(t, int64(10_000_000), src.MaxBytes)
	std, ok := src.Client.(*httputil.StandardClient)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, std.Timeout)
}

func TestFileSource_Fetch(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/timings/1_alafasy.json", testutil.Payload(t, testutil.RawEntries(testutil.ScenarioSpans...)))
	src := &FileSource{FS: mfs, Dir: "/timings", MaxBytes: 1 << 20}

	assert.Equal(t, "/timings/1_alafasy.json", src.Path(testutil.ScenarioKey))

	raw, err := src.FetchTiming(context.Background(), testutil.ScenarioKey)
	require.NoError(t, err)
	tbl, err := timing.Normalize(testutil.ScenarioKey, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestFileSource_Failures(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/timings/2_husary.json", []byte("not json"))
	mfs.WriteFile("/timings/3_husary.json", []byte(strings.Repeat(" ", 64)+"[]"))
	src := &FileSource{FS: mfs, Dir: "/timings", MaxBytes: 32}

	kindOf := func(err error) timing.ErrorKind {
		var ne *timing.NormalizationError
		require.ErrorAs(t, err, &ne)
		return ne.Kind
	}

	_, err := src.FetchTiming(context.Background(), timing.Key{Surah: 1, Reciter: "husary"})
	assert.Equal(t, timing.KindUnavailable, kindOf(err), "missing file")

	_, err = src.FetchTiming(context.Background(), timing.Key{Surah: 2, Reciter: "husary"})
	assert.Equal(t, timing.KindMalformed, kindOf(err))

	_, err = src.FetchTiming(context.Background(), timing.Key{Surah: 3, Reciter: "husary"})
	assert.ErrorIs(t, err, fsutil.ErrTooLarge)

	_, err = src.FetchTiming(context.Background(), timing.Key{Surah: 1, Reciter: "../etc"})
	assert.Equal(t, timing.KindUnavailable, kindOf(err), "path traversal")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.FetchTiming(ctx, timing.Key{Surah: 2, Reciter: "husary"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_Keys(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	for _, name := range []string{"114_alafasy.json", "2_husary.json", "2_alafasy.json", "x_alafasy.json", "notes_.json", "readme.json"} {
		mfs.WriteFile("/timings/"+name, []byte("[]"))
	}
	src := &FileSource{FS: mfs, Dir: "/timings"}

	keys, err := src.Keys()
	require.NoError(t, err)
	assert.Equal(t, []timing.Key{
		{Surah: 2, Reciter: "alafasy"},
		{Surah: 2, Reciter: "husary"},
		{Surah: 114, Reciter: "alafasy"},
	}, keys)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	_, err := FromConfig(config.EmptyConfig())
	assert.ErrorIs(t, err, ErrNoSource)

	dir := "/var/timings"
	cfg := config.EmptyConfig()
	cfg.TimingDir = &dir
	src, err := FromConfig(cfg)
	require.NoError(t, err)
	fs, ok := src.(*FileSource)
	require.True(t, ok)
	assert.Equal(t, dir, fs.Dir)

	ep := endpoint
	cfg.TimingEndpoint = &ep
	src, err = FromConfig(cfg)
	require.NoError(t, err)
	_, ok = src.(*HTTPSource)
	assert.True(t, ok, "endpoint wins over directory")
}

func TestSourceFunc(t *testing.T) {
	t.Parallel()

	var got timing.Key
	var src Source = SourceFunc(func(_ context.Context, key timing.Key) ([]timing.RawEntry, error) {
		got = key
		return nil, nil
	})
	_, err := src.FetchTiming(context.Background(), testutil.ScenarioKey)
	require.NoError(t, err)
	assert.Equal(t, testutil.ScenarioKey, got)
}

func TestPathSource(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/tmp/fatiha.json", testutil.Payload(t, testutil.RawEntries(testutil.ScenarioSpans...)))
	src := &PathSource{FS: mfs, Path: "/tmp/fatiha.json", MaxBytes: 1 << 20}

	key := timing.Key{Surah: 1, Reciter: "local"}
	raw, err := src.FetchTiming(context.Background(), key)
	require.NoError(t, err)
	assert.Len(t, raw, 2)

	mfs.WriteFile("/tmp/broken.json", []byte("{"))
	_, err = (&PathSource{FS: mfs, Path: "/tmp/broken.json"}).FetchTiming(context.Background(), key)
	var ne *timing.NormalizationError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, timing.KindMalformed, ne.Kind)
	assert.Equal(t, key, ne.Key)
}
