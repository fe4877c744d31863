package rpc

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxInFlight is the per-session limit on calls awaiting a response.
const DefaultMaxInFlight = 64

// Quota bounds the number of calls one session may have in flight.
//
// Each session has its own Quota. Check is called before a call is
// dispatched and Done when its response has been produced. A client that
// pipelines faster than the engine drains gets Unavailable instead of
// filling the command channel for every other connection.
type Quota struct {
	mu      sync.Mutex
	limit   int // <= 0 means unlimited
	current int
}

// NewQuota creates a quota with the given limit.
func NewQuota(limit int) *Quota {
	return &Quota{limit: limit}
}

// Check takes one in-flight slot, or returns QuotaExceededError when the
// session is at its limit.
func (q *Quota) Check(session string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && q.current >= q.limit {
		return &QuotaExceededError{Session: session, InFlight: q.current, Limit: q.limit}
	}
	q.current++
	return nil
}

// Done returns a slot taken by Check.
func (q *Quota) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current > 0 {
		q.current--
	}
}

// Current returns the number of calls in flight.
func (q *Quota) Current() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// Limit returns the configured limit.
func (q *Quota) Limit() int {
	return q.limit
}

// QuotaExceededError is returned when a session has too many calls in
// flight.
type QuotaExceededError struct {
	Session  string
	InFlight int
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("session %s has %d calls in flight (limit %d)", e.Session, e.InFlight, e.Limit)
}

// IsQuotaExceededError reports whether err is a QuotaExceededError.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
