// Package metrics registers the prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttendanceAccepted counts successfully persisted attendance records.
	AttendanceAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_attendance_accepted_total",
		Help: "Attendance claims accepted and persisted.",
	})

	// AttendanceRejected counts rejected claims by reason code.
	AttendanceRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoattend_attendance_rejected_total",
		Help: "Attendance claims rejected, partitioned by reason.",
	}, []string{"reason"})

	// ClaimDistanceMeters observes the raw geodesic distance of each
	// validated claim, accepted or not.
	ClaimDistanceMeters = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoattend_claim_distance_meters",
		Help:    "Geodesic distance between claim and session anchor.",
		Buckets: []float64{5, 10, 25, 50, 100, 200, 300, 500, 1000, 5000},
	})

	// SessionsCreated counts organizer-created sessions.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_sessions_created_total",
		Help: "Sessions created.",
	})
)
