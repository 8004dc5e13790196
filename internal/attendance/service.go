package attendance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"geoattend/internal/apperr"
	"geoattend/internal/geo"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/session"
)

// Outcome is what a recording attempt produced. Record is populated on
// success and on idempotent duplicates, so callers can always show the
// existing row.
type Outcome struct {
	Record  Record
	Created bool
}

// Ledger enforces at-most-one-attendance-per-(session, student). The
// pre-checks give fast, explainable rejections; the database unique
// constraints are the source of truth under concurrency.
type Ledger struct {
	repo     *Repository
	sessions *session.Registry
	work     queue.Queue
	blockVPN bool
	log      *zap.Logger
}

// NewLedger creates a ledger. work may be nil when no worker runs.
func NewLedger(repo *Repository, sessions *session.Registry, work queue.Queue, blockVPN bool, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{repo: repo, sessions: sessions, work: work, blockVPN: blockVPN, log: log}
}

// RecordClaim runs the full decision pipeline: resolve the session,
// validate the geofence, apply duplicate/anti-proxy rules, persist.
func (l *Ledger) RecordClaim(ctx context.Context, claim Claim) (Outcome, error) {
	if claim.SessionID == "" || claim.StudentID == "" {
		return Outcome{}, apperr.Validation(apperr.ReasonBadInput, "session id and student identifier are required")
	}
	if claim.Location == nil {
		return Outcome{}, apperr.Validation(apperr.ReasonLocationMissing, "location access is required to mark attendance")
	}
	if claim.OriginIP == "" {
		return Outcome{}, apperr.Validation(apperr.ReasonBadInput, "network origin could not be determined")
	}

	sess, err := l.sessions.FindActive(ctx, claim.SessionID)
	if err != nil {
		l.countRejection(err)
		return Outcome{}, err
	}

	anchor := sess.Anchor()
	v := geo.Validate(&anchor, claim.Location, sess.RadiusMeters)
	metrics.ClaimDistanceMeters.Observe(v.DistanceMeters)
	if !v.Accepted {
		err := apperr.Policy(apperr.ReasonOutOfRange, v.Reason)
		l.countRejection(err)
		return Outcome{}, err
	}

	if l.blockVPN && claim.VPNSuspected {
		err := apperr.Policy(apperr.ReasonVPNSuspected, "VPN or proxy detected; disable it to mark attendance")
		l.countRejection(err)
		return Outcome{}, err
	}

	// Pre-checks, first match wins. These are UX only: two racing
	// requests can both pass them, and the insert constraints settle it.
	if existing, err := l.repo.FindByStudent(ctx, claim.SessionID, claim.StudentID); err != nil {
		return Outcome{}, apperr.Transient("attendance lookup failed", err)
	} else if existing != nil {
		return l.alreadyMarked(*existing)
	}
	if byOrigin, err := l.repo.FindByOrigin(ctx, claim.SessionID, claim.OriginIP); err != nil {
		return Outcome{}, apperr.Transient("attendance lookup failed", err)
	} else if byOrigin != nil {
		if byOrigin.StudentID != claim.StudentID {
			return Outcome{}, l.originConflict()
		}
		// Same student resubmitting from the same origin: idempotent.
		return Outcome{Record: *byOrigin, Created: false}, nil
	}

	rec, err := l.repo.Insert(ctx, Record{
		SessionID:      claim.SessionID,
		StudentID:      claim.StudentID,
		StudentName:    claim.StudentName,
		Latitude:       claim.Location.Latitude,
		Longitude:      claim.Location.Longitude,
		AccuracyMeters: claim.Location.AccuracyMeters,
		OriginIP:       claim.OriginIP,
		UserAgent:      claim.Device.UserAgent,
		Platform:       claim.Device.Platform,
		Browser:        claim.Device.Browser,
		DistanceMeters: v.DistanceMeters,
		WithinRange:    true,
		VPNSuspected:   claim.VPNSuspected,
	})
	if err != nil {
		return l.resolveInsertConflict(ctx, claim, err)
	}

	l.afterCommit(ctx, rec)
	return Outcome{Record: rec, Created: true}, nil
}

// resolveInsertConflict translates a unique violation raised by a racing
// writer into the same rejection the pre-check would have produced.
func (l *Ledger) resolveInsertConflict(ctx context.Context, claim Claim, insertErr error) (Outcome, error) {
	switch {
	case errors.Is(insertErr, ErrDuplicateStudent):
		existing, err := l.repo.FindByStudent(ctx, claim.SessionID, claim.StudentID)
		if err != nil || existing == nil {
			return Outcome{}, apperr.Transient("attendance lookup failed", err)
		}
		return l.alreadyMarked(*existing)
	case errors.Is(insertErr, ErrDuplicateOrigin):
		existing, err := l.repo.FindByOrigin(ctx, claim.SessionID, claim.OriginIP)
		if err != nil || existing == nil {
			return Outcome{}, apperr.Transient("attendance lookup failed", err)
		}
		if existing.StudentID == claim.StudentID {
			return Outcome{Record: *existing, Created: false}, nil
		}
		return Outcome{}, l.originConflict()
	default:
		return Outcome{}, apperr.Transient("attendance write failed", insertErr)
	}
}

func (l *Ledger) alreadyMarked(existing Record) (Outcome, error) {
	err := apperr.Policy(apperr.ReasonAlreadyMarked, "attendance already marked for this student in this session")
	l.countRejection(err)
	return Outcome{Record: existing, Created: false}, err
}

func (l *Ledger) originConflict() error {
	err := apperr.Policy(apperr.ReasonOriginConflict,
		"this network origin already marked attendance for a different student in this session")
	l.countRejection(err)
	return err
}

// afterCommit runs the post-persist side effects. None of them may fail
// the marking: the record is already durable.
func (l *Ledger) afterCommit(ctx context.Context, rec Record) {
	metrics.AttendanceAccepted.Inc()

	if err := l.sessions.IncrementAttendance(ctx, rec.SessionID); err != nil {
		l.log.Warn("attendance counter increment failed",
			zap.String("session_id", rec.SessionID), zap.Error(err))
	}
	if l.work != nil {
		msg := queue.Message{Kind: queue.KindAttendanceRecorded, Body: rec.ID}
		if err := l.work.Publish(ctx, msg); err != nil {
			l.log.Warn("post-commit publish failed",
				zap.String("record_id", rec.ID), zap.Error(err))
		}
	}
	l.log.Info("attendance recorded",
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.Float64("distance_m", rec.DistanceMeters))
}

func (l *Ledger) countRejection(err error) {
	metrics.AttendanceRejected.WithLabelValues(string(apperr.ReasonOf(err))).Inc()
}

// SessionAttendance lists a session's records.
func (l *Ledger) SessionAttendance(ctx context.Context, sessionID string) ([]Record, error) {
	recs, err := l.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Transient("attendance list failed", err)
	}
	return recs, nil
}

// GetRecord fetches one record by id; the worker uses this to hydrate
// queue messages.
func (l *Ledger) GetRecord(ctx context.Context, id string) (*Record, error) {
	rec, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Transient("attendance lookup failed", err)
	}
	if rec == nil {
		return nil, apperr.NotFound(apperr.ReasonBadInput, fmt.Sprintf("attendance record %s not found", id))
	}
	return rec, nil
}
