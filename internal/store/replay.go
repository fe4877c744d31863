package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SessionSummary describes a journaled session for the journal command
// and for replay.
type SessionSummary struct {
	Session Session
	Calls   int
	Failed  int
	LastSeq int64
}

// Summarize reads one session and counts its calls. Calls made over
// single HTTP requests have no session row; summarizing their id reports
// a zero Session with the counts.
func (s *Store) Summarize(ctx context.Context, sessionID string) (SessionSummary, error) {
	sum := SessionSummary{Session: Session{ID: sessionID}}

	sess, err := s.ReadSession(ctx, sessionID)
	switch {
	case err == nil:
		sum.Session = sess
	case isNoRows(err):
	default:
		return sum, fmt.Errorf("summarize session: %w", err)
	}

	calls, err := s.ReadCalls(ctx, CallFilter{SessionID: sessionID})
	if err != nil {
		return sum, fmt.Errorf("summarize session: %w", err)
	}
	for _, c := range calls {
		sum.Calls++
		if !c.OK() {
			sum.Failed++
		}
		if c.Seq > sum.LastSeq {
			sum.LastSeq = c.Seq
		}
	}
	return sum, nil
}

// ReplayCalls returns the successful calls of a session in the order they
// were applied. Failed calls had no effect and are left out.
func (s *Store) ReplayCalls(ctx context.Context, sessionID string) ([]Call, error) {
	calls, err := s.ReadCalls(ctx, CallFilter{SessionID: sessionID, OKOnly: true})
	if err != nil {
		return nil, fmt.Errorf("replay calls: %w", err)
	}
	return calls, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
