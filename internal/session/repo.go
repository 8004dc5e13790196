package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, session_id, group_label, date, time_slot, notes, created_by,
	anchor_lat, anchor_lon, radius_m, state, attendance_count, created_at`

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new session. ID and SessionID are assigned when empty.
func (r *Repository) Insert(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.State == "" {
		s.State = StateActive
	}
	if s.Date.IsZero() {
		s.Date = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, session_id, group_label, date, time_slot, notes, created_by,
			anchor_lat, anchor_lon, radius_m, state)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at
	`, s.ID, s.SessionID, s.GroupLabel, s.Date, s.TimeSlot, s.Notes, s.CreatedBy,
		s.AnchorLatitude, s.AnchorLongitude, s.RadiusMeters, s.State)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// FindActive returns the session only while it is active; ended sessions
// are indistinguishable from missing ones here.
func (r *Repository) FindActive(ctx context.Context, sessionID string) (*Session, error) {
	return r.findWhere(ctx, `session_id = $1 AND state = 'active'`, sessionID)
}

// Find returns the session in any state.
func (r *Repository) Find(ctx context.Context, sessionID string) (*Session, error) {
	return r.findWhere(ctx, `session_id = $1`, sessionID)
}

func (r *Repository) findWhere(ctx context.Context, where string, args ...any) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE `+where, args...)
	var s Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// End flips an active session to ended. Returns the number of rows
// changed; zero means the session was missing or already ended.
func (r *Repository) End(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET state = 'ended' WHERE session_id = $1 AND state = 'active'
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the session row; attendance records go with it via the
// ON DELETE CASCADE foreign key.
func (r *Repository) Delete(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IncrementAttendance bumps the counter by one, atomically in-row.
func (r *Repository) IncrementAttendance(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET attendance_count = attendance_count + 1 WHERE session_id = $1
	`, sessionID)
	return err
}

// List returns sessions newest first, optionally including ended ones.
func (r *Repository) List(ctx context.Context, includeEnded bool) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if !includeEnded {
		query += ` WHERE state = 'active'`
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, s *Session) error {
	return row.Scan(&s.ID, &s.SessionID, &s.GroupLabel, &s.Date, &s.TimeSlot, &s.Notes,
		&s.CreatedBy, &s.AnchorLatitude, &s.AnchorLongitude, &s.RadiusMeters, &s.State,
		&s.AttendanceCount, &s.CreatedAt)
}
