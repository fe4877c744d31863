package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReadSessions returns all sessions ordered by seq.
//
// Returns an empty slice (not nil) if the journal has no sessions.
func (s *Store) ReadSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, remote, opened_at, closed_at
		FROM sessions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns one session. Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, remote, opened_at, closed_at
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// ReadCalls returns the calls matching f ordered by seq. Calls of a single
// session are ordered by SessionSeq first, which is the order the session
// submitted them; seq is the order their outcomes were journaled.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadCalls(ctx context.Context, f CallFilter) ([]Call, error) {
	var where []string
	var args []any
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Method != "" {
		where = append(where, "method = ?")
		args = append(args, f.Method)
	}
	if f.OKOnly {
		where = append(where, "outcome = ?")
		args = append(args, OutcomeOK)
	}

	query := `
		SELECT seq, session_id, session_seq, request_id, method, params, outcome, message, recorded_at
		FROM calls`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	if f.SessionID != "" {
		query += "\n\t\tORDER BY session_seq ASC, seq ASC"
	} else {
		query += "\n\t\tORDER BY seq ASC"
	}
	if f.Limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// CountCalls returns the number of journaled calls.
func (s *Store) CountCalls(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var sess Session
	var opened int64
	var closed sql.NullInt64
	if err := row.Scan(&sess.Seq, &sess.ID, &sess.Remote, &opened, &closed); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.OpenedAt = time.Unix(0, opened).UTC()
	if closed.Valid {
		sess.ClosedAt = time.Unix(0, closed.Int64).UTC()
	}
	return sess, nil
}

func scanCall(row scanner) (Call, error) {
	var c Call
	var params string
	var recorded int64
	if err := row.Scan(&c.Seq, &c.SessionID, &c.SessionSeq, &c.RequestID, &c.Method, &params, &c.Outcome, &c.Message, &recorded); err != nil {
		return Call{}, fmt.Errorf("scan call: %w", err)
	}
	c.Params = json.RawMessage(params)
	c.RecordedAt = time.Unix(0, recorded).UTC()
	return c, nil
}
