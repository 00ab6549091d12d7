// Package eventmux fans verse events out to any number of subscribers and
// serves them as a live Server-Sent Events tail on the debug mux.
package eventmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// subscriberBuffer is how many payloads a slow subscriber may lag behind
// before it starts missing events.
const subscriberBuffer = 16

// Mux broadcasts string payloads. Publishing never blocks: a subscriber
// whose buffer is full misses the payload.
type Mux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
	dropped     int64
}

func New() *Mux {
	return &Mux{subscribers: make(map[string]chan string)}
}

// randomID generates a random channel ID (8 byte random hex encoded value).
// crypto/rand.Read never returns an error since Go 1.24; it crashes the
// program instead when the system source fails.
func randomID() string {
	b := make([]byte, 8)
	_, _ = crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns a channel of payloads and the id to unsubscribe it
// with. On a closed mux the channel is already closed.
func (m *Mux) Subscribe() (string, <-chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (m *Mux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers returns the current subscriber count.
func (m *Mux) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Publish sends payload to every subscriber.
func (m *Mux) Publish(payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- payload:
		default:
			m.dropped++
		}
	}
}

// PublishJSON publishes v encoded as a single JSON line.
func (m *Mux) PublishJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	m.Publish(string(b))
	return nil
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (m *Mux) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Close closes every subscriber channel. Later publishes are ignored.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return nil
}

// AttachAdminRoutes mounts the SSE tail under /debug/events.
func (m *Mux) AttachAdminRoutes(debug *tsweb.DebugHandler) {
	debug.Handle("events", "Live verse events (Server-Sent Events)", http.HandlerFunc(m.handleTail))
}

func (m *Mux) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := m.Subscribe()
	defer m.Unsubscribe(id)

	// initial ping establishes the stream
	io.WriteString(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
