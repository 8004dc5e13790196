package session

import (
	"fmt"
	"strings"
	"time"

	"geoattend/internal/geo"
)

// State is the session lifecycle phase. Transitions only move forward:
// active -> ended; deletion removes the row (and cascades attendance).
type State string

const (
	StateActive State = "active"
	StateEnded  State = "ended"
)

// Session anchors a geofenced attendance window. Anchor coordinates and
// radius are immutable after creation.
type Session struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	GroupLabel      string    `json:"group_label"`
	Date            time.Time `json:"date"`
	TimeSlot        string    `json:"time_slot"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	AnchorLatitude  float64   `json:"anchor_latitude"`
	AnchorLongitude float64   `json:"anchor_longitude"`
	RadiusMeters    float64   `json:"radius_meters"`
	State           State     `json:"state"`
	AttendanceCount int       `json:"attendance_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Anchor returns the organizer-declared location as a coordinate.
func (s *Session) Anchor() geo.Coordinate {
	return geo.Coordinate{Latitude: s.AnchorLatitude, Longitude: s.AnchorLongitude}
}

// JoinURL is the string a QR code encodes; the image itself is rendered
// elsewhere.
func (s *Session) JoinURL(frontendBase string) string {
	return fmt.Sprintf("%s/mark-attendance?session_id=%s", strings.TrimRight(frontendBase, "/"), s.SessionID)
}
