package attendance

import (
	"strings"
	"time"

	"geoattend/internal/geo"
)

// Record is one persisted proof-of-presence. Immutable once created.
type Record struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	StudentID      string    `json:"student_id"`
	StudentName    string    `json:"student_name,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	OriginIP       string    `json:"origin_ip"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Platform       string    `json:"platform,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	DistanceMeters float64   `json:"distance_meters"`
	WithinRange    bool      `json:"within_range"`
	VPNSuspected   bool      `json:"vpn_suspected"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Claim is a candidate attendance submission, already shaped by the
// HTTP layer (coordinates parsed, client IP resolved, VPN lookup done).
type Claim struct {
	SessionID    string
	StudentID    string
	StudentName  string
	Location     *geo.Coordinate
	OriginIP     string
	Device       DeviceContext
	VPNSuspected bool
}

// DeviceContext is coarse client metadata kept for the audit trail.
type DeviceContext struct {
	UserAgent string `json:"user_agent,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Browser   string `json:"browser,omitempty"`
}

// ParseDeviceContext derives platform/browser from a User-Agent header.
// Best effort only; nothing downstream depends on it.
func ParseDeviceContext(userAgent string) DeviceContext {
	d := DeviceContext{UserAgent: userAgent, Platform: "Desktop", Browser: "Unknown"}
	if containsAny(userAgent, "Mobile", "Android", "iPhone", "iPad") {
		d.Platform = "Mobile"
	}
	switch {
	case strings.Contains(userAgent, "Firefox"):
		d.Browser = "Firefox"
	case strings.Contains(userAgent, "Chrome"):
		d.Browser = "Chrome"
	case strings.Contains(userAgent, "Safari"):
		d.Browser = "Safari"
	}
	return d
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
