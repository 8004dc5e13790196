package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"geoattend/internal/apperr"
	"geoattend/internal/geo"
	"geoattend/internal/metrics"
)

// CreateParams is the organizer's input for a new session.
type CreateParams struct {
	GroupLabel   string
	Date         time.Time
	TimeSlot     string
	Notes        string
	CreatedBy    string
	Anchor       geo.Coordinate
	RadiusMeters float64
}

// Registry owns the session lifecycle and the anchor/radius the
// validator runs against. All policy defaults come in via the
// constructor; there is no ambient configuration.
type Registry struct {
	repo          *Repository
	defaultRadius float64
	log           *zap.Logger
}

// NewRegistry creates a registry. defaultRadius applies when a session
// is created without an explicit radius.
func NewRegistry(repo *Repository, defaultRadius float64, log *zap.Logger) *Registry {
	if defaultRadius <= 0 {
		defaultRadius = 200
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{repo: repo, defaultRadius: defaultRadius, log: log}
}

// Create validates the anchor and persists a new active session.
func (g *Registry) Create(ctx context.Context, p CreateParams) (Session, error) {
	if err := p.Anchor.Validate(); err != nil {
		return Session{}, apperr.Validation(apperr.ReasonBadInput, "invalid anchor coordinate: "+err.Error())
	}
	if p.GroupLabel == "" || p.TimeSlot == "" {
		return Session{}, apperr.Validation(apperr.ReasonBadInput, "group label and time slot are required")
	}
	radius := p.RadiusMeters
	if radius <= 0 {
		radius = g.defaultRadius
	}

	s, err := g.repo.Insert(ctx, Session{
		GroupLabel:      p.GroupLabel,
		Date:            p.Date,
		TimeSlot:        p.TimeSlot,
		Notes:           p.Notes,
		CreatedBy:       p.CreatedBy,
		AnchorLatitude:  p.Anchor.Latitude,
		AnchorLongitude: p.Anchor.Longitude,
		RadiusMeters:    radius,
	})
	if err != nil {
		return Session{}, apperr.Transient("session create failed", err)
	}

	metrics.SessionsCreated.Inc()
	g.log.Info("session created",
		zap.String("session_id", s.SessionID),
		zap.String("group", s.GroupLabel),
		zap.Float64("radius_m", s.RadiusMeters))
	return s, nil
}

// FindActive resolves a session for an attendance attempt. Ended or
// deleted sessions surface as not found.
func (g *Registry) FindActive(ctx context.Context, sessionID string) (*Session, error) {
	s, err := g.repo.FindActive(ctx, sessionID)
	if err != nil {
		return nil, apperr.Transient("session lookup failed", err)
	}
	if s == nil {
		return nil, apperr.NotFound(apperr.ReasonSessionNotFound, "session not found or inactive")
	}
	return s, nil
}

// End transitions active -> ended. Ending an already-ended session is an
// error, not a silent no-op.
func (g *Registry) End(ctx context.Context, sessionID string) error {
	n, err := g.repo.End(ctx, sessionID)
	if err != nil {
		return apperr.Transient("session end failed", err)
	}
	if n > 0 {
		g.log.Info("session ended", zap.String("session_id", sessionID))
		return nil
	}
	existing, err := g.repo.Find(ctx, sessionID)
	if err != nil {
		return apperr.Transient("session lookup failed", err)
	}
	if existing == nil {
		return apperr.NotFound(apperr.ReasonSessionNotFound, "session not found")
	}
	return apperr.Policy(apperr.ReasonAlreadyEnded, "session is already ended")
}

// Delete removes the session and cascades deletion of its attendance
// records. Irreversible.
func (g *Registry) Delete(ctx context.Context, sessionID string) error {
	n, err := g.repo.Delete(ctx, sessionID)
	if err != nil {
		return apperr.Transient("session delete failed", err)
	}
	if n == 0 {
		return apperr.NotFound(apperr.ReasonSessionNotFound, "session not found")
	}
	g.log.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// IncrementAttendance bumps the per-session counter.
func (g *Registry) IncrementAttendance(ctx context.Context, sessionID string) error {
	return g.repo.IncrementAttendance(ctx, sessionID)
}

// List returns sessions for the organizer dashboard.
func (g *Registry) List(ctx context.Context, includeEnded bool) ([]Session, error) {
	out, err := g.repo.List(ctx, includeEnded)
	if err != nil {
		return nil, apperr.Transient("session list failed", err)
	}
	return out, nil
}
