// Package timing collects processing-time statistics for the engine, its
// tracks and its processors.
//
// The audio goroutine only calls Start and Stop, which read the monotonic
// clock and push a log point into a bounded lock-free fifo; when the fifo
// is full the point is dropped. A worker goroutine (Run) periodically
// drains the fifo and merges each batch into per-node records under a
// mutex, so readers never contend with the audio goroutine. The mutex also
// makes whoever holds it the fifo's only consumer.
//
// Values are fractions of the block period: 1.0 means a node used the
// entire time budget of one block.
package timing

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/sushid/internal/control"
	"github.com/roach88/sushid/internal/ring"
)

// AveragingFactor weighs a new batch average against the running average.
const AveragingFactor = 0.5

// DefaultInterval is the worker's evaluation interval.
const DefaultInterval = time.Second

type logPoint struct {
	id    int
	delta time.Duration
}

type record struct {
	timings control.CpuTimings
	samples int
}

// Timer aggregates processing times per node id.
type Timer struct {
	period  float64 // nanoseconds per block
	enabled atomic.Bool
	fifo    *ring.Ring[logPoint]
	dropped atomic.Uint64

	mu      sync.Mutex
	records map[int]*record
	batch   map[int]*record // scratch, guarded by mu
}

// New creates a timer for blocks of the given period. capacity bounds the
// number of log points buffered between two updates.
func New(period time.Duration, capacity int) *Timer {
	return &Timer{
		period:  float64(period.Nanoseconds()),
		fifo:    ring.New[logPoint](capacity),
		records: make(map[int]*record),
		batch:   make(map[int]*record),
	}
}

// BlockPeriod returns the duration of one block of frames.
func BlockPeriod(frames int, samplerate float64) time.Duration {
	return time.Duration(float64(frames) / samplerate * float64(time.Second))
}

// Enabled reports whether statistics are being collected.
func (t *Timer) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled turns collection on or off. Disabling discards buffered log
// points and all records.
func (t *Timer) SetEnabled(enabled bool) {
	if t.enabled.Swap(enabled) == enabled || enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if _, ok := t.fifo.Pop(); !ok {
			break
		}
	}
	clear(t.records)
}

// Start returns the start timestamp of a measurement, or the zero time
// when collection is disabled. Audio goroutine only.
func (t *Timer) Start() time.Time {
	if !t.enabled.Load() {
		return time.Time{}
	}
	return time.Now()
}

// Stop logs the time elapsed since start for node id. Audio goroutine only.
func (t *Timer) Stop(id int, start time.Time) {
	if start.IsZero() {
		return
	}
	if !t.fifo.Push(logPoint{id: id, delta: time.Since(start)}) {
		t.dropped.Add(1)
	}
}

// Dropped returns how many log points were discarded because the fifo was
// full.
func (t *Timer) Dropped() uint64 {
	return t.dropped.Load()
}

// Update drains pending log points and merges them into the records. It
// returns the number of points consumed.
func (t *Timer) Update() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.update()
}

// update requires t.mu.
func (t *Timer) update() int {
	n := 0
	for {
		p, ok := t.fifo.Pop()
		if !ok {
			break
		}
		v := float64(p.delta.Nanoseconds()) / t.period
		b := t.batch[p.id]
		if b == nil {
			b = &record{}
			t.batch[p.id] = b
		}
		if b.samples == 0 {
			b.timings = control.CpuTimings{Average: 0, Min: v, Max: v}
		}
		b.timings.Average += v
		b.timings.Min = math.Min(b.timings.Min, v)
		b.timings.Max = math.Max(b.timings.Max, v)
		b.samples++
		n++
	}
	if n == 0 {
		return 0
	}

	for id, b := range t.batch {
		if b.samples == 0 {
			continue
		}
		b.timings.Average /= float64(b.samples)
		t.merge(id, b)
		b.samples = 0
	}
	return n
}

func (t *Timer) merge(id int, b *record) {
	r := t.records[id]
	if r == nil {
		r = &record{}
		t.records[id] = r
	}
	if r.samples == 0 {
		r.timings = b.timings
	} else {
		r.timings.Average = (1-AveragingFactor)*r.timings.Average + AveragingFactor*b.timings.Average
		r.timings.Min = math.Min(r.timings.Min, b.timings.Min)
		r.timings.Max = math.Max(r.timings.Max, b.timings.Max)
	}
	r.samples += b.samples
}

// Run updates the records every interval until ctx is done.
func (t *Timer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Debug("timing worker starting", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("timing worker stopping", "dropped", t.Dropped())
			return
		case <-ticker.C:
			if t.enabled.Load() {
				t.Update()
			}
		}
	}
}

// Timings returns the record for id. ok is false if nothing was ever
// recorded for it; a cleared record reports zeros with ok true.
func (t *Timer) Timings(id int) (timings control.CpuTimings, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return control.CpuTimings{}, false
	}
	if r.samples == 0 {
		return control.CpuTimings{}, true
	}
	return r.timings, true
}

// Clear resets the record for id. Log points buffered before the call are
// merged first so a later Update cannot bring them back. It reports whether
// a record existed.
func (t *Timer) Clear(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.update()
	r, ok := t.records[id]
	if ok {
		*r = record{}
	}
	return ok
}

// ClearAll resets every record, including buffered log points.
func (t *Timer) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.update()
	for _, r := range t.records {
		*r = record{}
	}
}
