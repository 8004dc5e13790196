package geo

import "fmt"

// Validation is the outcome of a geofence check.
type Validation struct {
	Accepted        bool    `json:"accepted"`
	DistanceMeters  float64 `json:"distance_meters"`
	EffectiveMeters float64 `json:"effective_meters"`
	RadiusMeters    float64 `json:"radius_meters"`
	Reason          string  `json:"reason,omitempty"`
}

// Validate decides whether a claimed position falls inside the geofence
// around anchor. The claimant's GPS accuracy is subtracted from the raw
// distance as a tolerance margin, floored at zero, so an uncertain fix
// gets the benefit of the doubt but a precise one is never penalized.
func Validate(anchor, claimed *Coordinate, radiusMeters float64) Validation {
	if anchor == nil || claimed == nil {
		return Validation{
			Accepted:     false,
			RadiusMeters: radiusMeters,
			Reason:       "location data missing",
		}
	}

	raw := Distance(*anchor, *claimed)
	effective := raw - claimed.AccuracyMeters
	if effective < 0 {
		effective = 0
	}

	v := Validation{
		DistanceMeters:  raw,
		EffectiveMeters: effective,
		RadiusMeters:    radiusMeters,
		Accepted:        effective <= radiusMeters,
	}
	if !v.Accepted {
		v.Reason = fmt.Sprintf("%.0fm away from the session location (max %.0fm)", raw, radiusMeters)
	}
	return v
}
