package store

import (
	"encoding/json"
	"time"
)

// OutcomeOK is the outcome of a call that succeeded. Failed calls store
// their control error kind.
const OutcomeOK = "ok"

// Session is one control connection.
type Session struct {
	Seq      int64
	ID       string
	Remote   string
	OpenedAt time.Time
	ClosedAt time.Time // zero while open
}

// Open reports whether the session has not been closed.
func (s Session) Open() bool {
	return s.ClosedAt.IsZero()
}

// Call is one journaled call. Seq is assigned on write.
type Call struct {
	Seq        int64
	SessionID  string
	SessionSeq int64  // submission order within the session; 0 if unknown
	RequestID  string // raw JSON id; empty for notifications
	Method     string
	Params     json.RawMessage
	Outcome    string
	Message    string
	RecordedAt time.Time
}

// OK reports whether the call succeeded.
func (c Call) OK() bool {
	return c.Outcome == OutcomeOK
}

// CallFilter narrows ReadCalls. Zero fields match everything.
type CallFilter struct {
	SessionID string
	Method    string
	OKOnly    bool
	Limit     int
}
