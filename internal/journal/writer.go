package journal

import (
	"sync"
	"sync/atomic"

	"github.com/tilawah/versesync/internal/monitoring"
	"github.com/tilawah/versesync/internal/session"
)

// Writer is a session.Recorder that persists transitions on a background
// goroutine. Record never blocks: when the buffer is full the transition
// is dropped and counted.
type Writer struct {
	db *DB
	ch chan session.Transition

	mu     sync.RWMutex // guards closed against concurrent Record
	closed bool
	done   chan struct{}

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

var _ session.Recorder = (*Writer)(nil)

// NewWriter starts a writer with room for buffer pending transitions.
func NewWriter(db *DB, buffer int) *Writer {
	if buffer < 1 {
		buffer = 1
	}
	w := &Writer{
		db:   db,
		ch:   make(chan session.Transition, buffer),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Record queues tr for writing.
func (w *Writer) Record(tr session.Transition) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return
	}
	select {
	case w.ch <- tr:
	default:
		if n := w.dropped.Add(1); n == 1 || n%100 == 0 {
			monitoring.Logf("journal: buffer full, %d transitions dropped", n)
		}
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for tr := range w.ch {
		if err := w.db.Insert(tr); err != nil {
			w.failed.Add(1)
			monitoring.Logf("journal: %v", err)
			continue
		}
		w.written.Add(1)
	}
}

// Close stops accepting transitions and waits until the queued ones are
// written. It does not close the database.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

// WriterStats counts what happened to recorded transitions.
type WriterStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
	}
}
