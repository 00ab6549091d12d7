package eventmux

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"
)

func TestMux_SubscribePublish(t *testing.T) {
	m := New()
	id1, c1 := m.Subscribe()
	_, c2 := m.Subscribe()
	assert.Equal(t, 2, m.Subscribers())

	m.Publish("enter 1")
	assert.Equal(t, "enter 1", <-c1)
	assert.Equal(t, "enter 1", <-c2)

	m.Unsubscribe(id1)
	m.Unsubscribe(id1)
	_, ok := <-c1
	assert.False(t, ok, "unsubscribed channel is closed")
	assert.Equal(t, 1, m.Subscribers())

	require.NoError(t, m.PublishJSON(map[string]int{"verse": 2}))
	assert.Equal(t, `{"verse":2}`, <-c2)

	assert.Error(t, m.PublishJSON(func() {}))
}

func TestRandomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := randomID()
		b, err := hex.DecodeString(id)
		require.NoError(t, err)
		assert.Len(t, b, 8)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMux_SlowSubscriberDrops(t *testing.T) {
	m := New()
	_, c := m.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		m.Publish("x")
	}
	assert.Equal(t, int64(5), m.Dropped())
	assert.Len(t, c, subscriberBuffer)
}

func TestMux_Close(t *testing.T) {
	m := New()
	_, c := m.Subscribe()
	require.NoError(t, m.Close())
	_, ok := <-c
	assert.False(t, ok)

	m.Publish("ignored")
	_, late := m.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed mux yields a closed channel")
	assert.Equal(t, 0, m.Subscribers())
}

func TestMux_Tail(t *testing.T) {
	m := New()
	require.NotPanics(t, func() { m.AttachAdminRoutes(tsweb.Debugger(http.NewServeMux())) })

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.handleTail(rec, httptest.NewRequest(http.MethodGet, "/debug/events", nil))
	}()

	require.Eventually(t, func() bool { return m.Subscribers() == 1 }, time.Second, time.Millisecond)
	m.Publish(`{"kind":"enter","verse":1}`)
	require.NoError(t, m.Close())
	<-done

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": ping\n\n"))
	assert.Contains(t, body, "data: {\"kind\":\"enter\",\"verse\":1}\n\n")
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	m.handleTail(rec, httptest.NewRequest(http.MethodPost, "/debug/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
