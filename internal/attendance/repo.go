package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names from migrations/0001_init.sql. The ledger relies on
// them to tell which uniqueness rule a concurrent writer hit first.
const (
	constraintSessionStudent = "attendance_session_student_key"
	constraintSessionOrigin  = "attendance_session_origin_key"
)

// Sentinel errors for unique-violation inserts; the service maps them to
// the matching policy rejections.
var (
	ErrDuplicateStudent = errors.New("attendance already recorded for student in session")
	ErrDuplicateOrigin  = errors.New("attendance already recorded for origin in session")
)

const recordColumns = `id, session_id, student_id, student_name, lat, lon, accuracy_m,
	origin_ip, user_agent, platform, browser, distance_m, within_range, vpn_suspected, recorded_at`

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new record. Unique violations come back as
// ErrDuplicateStudent or ErrDuplicateOrigin depending on the constraint.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, student_name, lat, lon,
			accuracy_m, origin_ip, user_agent, platform, browser, distance_m, within_range,
			vpn_suspected, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING recorded_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.StudentName, rec.Latitude, rec.Longitude,
		rec.AccuracyMeters, rec.OriginIP, rec.UserAgent, rec.Platform, rec.Browser,
		rec.DistanceMeters, rec.WithinRange, rec.VPNSuspected, rec.RecordedAt)
	if err := row.Scan(&rec.RecordedAt); err != nil {
		if dup := classifyUnique(err); dup != nil {
			return Record{}, dup
		}
		return Record{}, err
	}
	return rec, nil
}

func classifyUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintSessionStudent:
		return ErrDuplicateStudent
	case constraintSessionOrigin:
		return ErrDuplicateOrigin
	}
	return nil
}

// FindByStudent returns the record for (session, student), nil when absent.
func (r *Repository) FindByStudent(ctx context.Context, sessionID, studentID string) (*Record, error) {
	return r.findWhere(ctx, `session_id = $1 AND student_id = $2`, sessionID, studentID)
}

// FindByOrigin returns the record for (session, origin), nil when absent.
func (r *Repository) FindByOrigin(ctx context.Context, sessionID, originIP string) (*Record, error) {
	return r.findWhere(ctx, `session_id = $1 AND origin_ip = $2`, sessionID, originIP)
}

func (r *Repository) findWhere(ctx context.Context, where string, args ...any) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE `+where, args...)
	var rec Record
	if err := scanRecord(row, &rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListBySession returns a session's records in marking order.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE session_id = $1 ORDER BY recorded_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Get returns a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	return r.findWhere(ctx, `id = $1`, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, rec *Record) error {
	return row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.StudentName, &rec.Latitude,
		&rec.Longitude, &rec.AccuracyMeters, &rec.OriginIP, &rec.UserAgent, &rec.Platform,
		&rec.Browser, &rec.DistanceMeters, &rec.WithinRange, &rec.VPNSuspected, &rec.RecordedAt)
}
