package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geoattend/internal/apperr"
	"geoattend/internal/geo"
)

var sessionCols = []string{"id", "session_id", "group_label", "date", "time_slot", "notes",
	"created_by", "anchor_lat", "anchor_lon", "radius_m", "state", "attendance_count", "created_at"}

func newTestRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRegistry(NewRepository(db), 200, zap.NewNop()), mock
}

func TestCreateAssignsDefaults(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectQuery(`INSERT INTO sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	s, err := reg.Create(context.Background(), CreateParams{
		GroupLabel: "Batch 1 - N5",
		Date:       time.Now(),
		TimeSlot:   "09:00-10:30",
		Anchor:     geo.Coordinate{Latitude: 1.3, Longitude: 103.8},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, StateActive, s.State)
	assert.Equal(t, 200.0, s.RadiusMeters, "default radius applies when none given")
}

func TestCreateRejectsInvalidAnchor(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Create(context.Background(), CreateParams{
		GroupLabel: "Batch 1",
		TimeSlot:   "09:00",
		Anchor:     geo.Coordinate{Latitude: 95, Longitude: 0},
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestFindActiveHidesEndedSessions(t *testing.T) {
	reg, mock := newTestRegistry(t)

	// The ended row is filtered by the query itself, so the lookup
	// comes back empty.
	mock.ExpectQuery(`FROM sessions WHERE session_id = \$1 AND state = 'active'`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := reg.FindActive(context.Background(), "sess-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, apperr.ReasonSessionNotFound, apperr.ReasonOf(err))
}

func TestEndActiveSession(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectExec(`UPDATE sessions SET state = 'ended'`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, reg.End(context.Background(), "sess-1"))
}

func TestEndAlreadyEndedSession(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectExec(`UPDATE sessions SET state = 'ended'`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM sessions WHERE session_id = \$1`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionCols).AddRow(
			"id-1", "sess-1", "Batch 1", time.Now(), "09:00", "", "",
			1.3, 103.8, 200.0, "ended", 5, time.Now()))

	err := reg.End(context.Background(), "sess-1")
	assert.Equal(t, apperr.ReasonAlreadyEnded, apperr.ReasonOf(err))
	assert.Contains(t, err.Error(), "already ended")
}

func TestEndUnknownSession(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectExec(`UPDATE sessions SET state = 'ended'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM sessions WHERE session_id = \$1`).
		WillReturnRows(sqlmock.NewRows(sessionCols))

	err := reg.End(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteSession(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE session_id = \$1`).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, reg.Delete(context.Background(), "sess-1"))
}

func TestDeleteUnknownSession(t *testing.T) {
	reg, mock := newTestRegistry(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE session_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := reg.Delete(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestJoinURL(t *testing.T) {
	s := Session{SessionID: "sess-1"}
	assert.Equal(t, "https://app.example.com/mark-attendance?session_id=sess-1",
		s.JoinURL("https://app.example.com/"))
}
