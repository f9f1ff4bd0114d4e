package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Recorder writes entries to a Store from a background goroutine so that
// navigation never waits on the database. Entries are dropped when the queue
// is full.
type Recorder struct {
	store Store
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}

	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder starts a recorder with room for buffer queued entries.
func NewRecorder(store Store, buffer int, log *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		store: store,
		log:   log,
		queue: make(chan Entry, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues e. It never blocks.
func (r *Recorder) Record(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many entries reached the store.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close stops accepting entries and waits until the queue is written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.store.Record(ctx, e)
		cancel()
		if err != nil {
			r.log.Warn("journal write failed", zap.String("deck", e.Deck), zap.Error(err))
			continue
		}
		r.written.Add(1)
	}
}
