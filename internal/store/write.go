package store

import (
	"context"
	"fmt"
	"time"
)

// WriteSession inserts a session record. Uses ON CONFLICT(id) DO NOTHING,
// so writing the same session twice is a no-op.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, remote, opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Remote,
		sess.OpenedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// CloseSession stamps a session closed. Closing an unknown or already
// closed session is a no-op.
func (s *Store) CloseSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET closed_at = ?
		WHERE id = ? AND closed_at IS NULL
	`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// WriteCall appends a call and returns its seq. Params are stored in
// canonical form.
func (s *Store) WriteCall(ctx context.Context, c Call) (int64, error) {
	params, err := Canonicalize(c.Params)
	if err != nil {
		return 0, fmt.Errorf("write call: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO calls
		(session_id, session_seq, request_id, method, params, outcome, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.SessionID,
		c.SessionSeq,
		c.RequestID,
		c.Method,
		params,
		c.Outcome,
		c.Message,
		c.RecordedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("write call: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write call: last insert id: %w", err)
	}
	return seq, nil
}
