package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRecorderBuffer is the number of journal entries that may wait
// for the writer before new ones are dropped.
const DefaultRecorderBuffer = 1024

type recordKind int

const (
	recordOpen recordKind = iota
	recordClose
	recordCall
)

type record struct {
	kind   recordKind
	id     string
	remote string
	at     time.Time
	call   Call
}

// Recorder journals sessions and calls from one writer goroutine. Its
// methods never block: when the buffer is full the entry is dropped and
// counted.
type Recorder struct {
	store  *Store
	now    func() time.Time
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	records chan record
	done    chan struct{}
	dropped atomic.Int64
	written atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

type recorderConfig struct {
	now    func() time.Time
	buffer int
	logger *slog.Logger
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(c *recorderConfig) {
		c.now = now
	}
}

// WithBuffer sets the queue length.
func WithBuffer(n int) RecorderOption {
	return func(c *recorderConfig) {
		c.buffer = n
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(c *recorderConfig) {
		c.logger = l
	}
}

// NewRecorder starts a recorder writing to s.
func NewRecorder(s *Store, opts ...RecorderOption) *Recorder {
	cfg := recorderConfig{now: time.Now, buffer: DefaultRecorderBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Recorder{
		store:   s,
		now:     cfg.now,
		logger:  cfg.logger,
		records: make(chan record, cfg.buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// OpenSession journals a new session.
func (r *Recorder) OpenSession(id, remote string) {
	r.enqueue(record{kind: recordOpen, id: id, remote: remote})
}

// CloseSession journals the end of a session.
func (r *Recorder) CloseSession(id string) {
	r.enqueue(record{kind: recordClose, id: id})
}

// Record journals a call. Params are copied.
func (r *Recorder) Record(c Call) {
	c.Params = append(json.RawMessage(nil), c.Params...)
	r.enqueue(record{kind: recordCall, call: c})
}

// Dropped returns the number of entries lost to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns the number of entries written.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting entries and waits until the queued ones are
// written. It does not close the store.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.records)
	}
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) enqueue(rec record) {
	rec.at = r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.records <- rec:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	ctx := context.Background()
	for rec := range r.records {
		var err error
		switch rec.kind {
		case recordOpen:
			err = r.store.WriteSession(ctx, Session{ID: rec.id, Remote: rec.remote, OpenedAt: rec.at})
		case recordClose:
			err = r.store.CloseSession(ctx, rec.id, rec.at)
		case recordCall:
			rec.call.RecordedAt = rec.at
			_, err = r.store.WriteCall(ctx, rec.call)
		}
		if err != nil {
			r.logger.Warn("journal write failed", "error", err)
			continue
		}
		r.written.Add(1)
	}
}
