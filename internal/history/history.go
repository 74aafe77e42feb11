package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/peterpjaspers/accessmonitor/internal/record"
)

// SessionSummary is one recorded build step: its identity, the window it
// ran in, and the final per-path access map stop_session returned.
type SessionSummary struct {
	SessionID    int
	StartedAt    time.Time
	StoppedAt    time.Time
	Directory    string
	Participants int
	Records      map[string]*record.AccessRecord
}

// Record persists a completed session's summary. StartedAt, together with
// SessionID, identifies the session uniquely across the id free list's
// reuse (spec.md §3: ids are "reusable after the session terminates", so
// SessionID alone isn't a stable key once a build tool runs many builds).
func (s *Store) Record(sum SessionSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO sessions (session_id, started_at, stopped_at, directory, participants)
		 VALUES (?, ?, ?, ?, ?)`,
		sum.SessionID, sum.StartedAt, sum.StoppedAt, sum.Directory, sum.Participants,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for path, rec := range sum.Records {
		var lastWrite any
		if !rec.LastWriteTime.IsZero() {
			lastWrite = rec.LastWriteTime
		}
		if _, err := tx.Exec(
			`INSERT INTO access_records
			 (session_id, started_at, path, effective_mode, all_modes, success_count, failure_count, last_write_time)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.SessionID, sum.StartedAt, path,
			rec.EffectiveMode.String(), rec.AllModes.String(),
			rec.SuccessCount, rec.FailureCount, lastWrite,
		); err != nil {
			return fmt.Errorf("insert access record %s: %w", path, err)
		}
	}

	return tx.Commit()
}

// Last returns the most recently recorded session, or (nil, nil) if the
// history is empty.
func (s *Store) Last() (*SessionSummary, error) {
	row := s.db.QueryRow(
		`SELECT session_id, started_at, stopped_at, directory, participants
		 FROM sessions ORDER BY started_at DESC LIMIT 1`,
	)
	sum := &SessionSummary{}
	if err := row.Scan(&sum.SessionID, &sum.StartedAt, &sum.StoppedAt, &sum.Directory, &sum.Participants); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query last session: %w", err)
	}

	recs, err := s.recordsFor(sum.SessionID, sum.StartedAt)
	if err != nil {
		return nil, err
	}
	sum.Records = recs
	return sum, nil
}

func (s *Store) recordsFor(sessionID int, startedAt time.Time) (map[string]*record.AccessRecord, error) {
	rows, err := s.db.Query(
		`SELECT path, effective_mode, all_modes, success_count, failure_count, last_write_time
		 FROM access_records WHERE session_id = ? AND started_at = ?`,
		sessionID, startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query access records: %w", err)
	}
	defer rows.Close()

	out := map[string]*record.AccessRecord{}
	for rows.Next() {
		var path, effMode, allModes string
		var success, failure int
		var lastWrite sql.NullTime
		if err := rows.Scan(&path, &effMode, &allModes, &success, &failure, &lastWrite); err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		rec := &record.AccessRecord{
			EffectiveMode: record.ParseMode(effMode),
			AllModes:      record.ParseMode(allModes),
			SuccessCount:  success,
			FailureCount:  failure,
		}
		if lastWrite.Valid {
			rec.LastWriteTime = lastWrite.Time
		}
		out[path] = rec
	}
	return out, rows.Err()
}

// PathsWrittenSince returns every path whose effective mode was Write or
// Delete in any session recorded at or after since — the query a build
// driver runs to ask "what did builds after this point touch", the same
// shape a dependency-invalidation pass needs.
func (s *Store) PathsWrittenSince(since time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT ar.path
		 FROM access_records ar
		 JOIN sessions se ON se.session_id = ar.session_id AND se.started_at = ar.started_at
		 WHERE se.started_at >= ? AND ar.effective_mode IN ('Write', 'Delete')`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query paths written since: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
