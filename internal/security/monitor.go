// Package security tracks where a student usually marks attendance from
// and flags unusual network origins. Advisory only: nothing here blocks
// a claim.
package security

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	historyCap    = 10
	defaultPrefix = "geoattend:origins:"
)

// OriginEntry is one observed network origin.
type OriginEntry struct {
	Origin string    `json:"origin"`
	SeenAt time.Time `json:"seen_at"`
}

// OriginPolicy decides whether a new origin looks suspicious given the
// recent history. Pluggable so the IPv4 /24 heuristic can be swapped out
// without touching the monitor.
type OriginPolicy interface {
	Suspicious(recent []OriginEntry, origin string) bool
}

// Monitor keeps a bounded per-student ring of recent origins in Redis.
type Monitor struct {
	rdb    *redis.Client
	prefix string
	policy OriginPolicy
	log    *zap.Logger
}

// NewMonitor creates a monitor. A nil policy falls back to the /24
// subnet heuristic.
func NewMonitor(rdb *redis.Client, policy OriginPolicy, log *zap.Logger) *Monitor {
	if policy == nil {
		policy = SubnetPolicy{Window: 5}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{rdb: rdb, prefix: defaultPrefix, policy: policy, log: log}
}

// RecordOrigin appends an origin to the student's history, evicting the
// oldest entry beyond the cap.
func (m *Monitor) RecordOrigin(ctx context.Context, studentID, origin string) error {
	key := m.key(studentID)
	entry := fmt.Sprintf("%s|%d", origin, time.Now().UTC().Unix())
	pipe := m.rdb.TxPipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, historyCap-1)
	_, err := pipe.Exec(ctx)
	return err
}

// History returns the student's recent origins, newest first.
func (m *Monitor) History(ctx context.Context, studentID string) ([]OriginEntry, error) {
	raw, err := m.rdb.LRange(ctx, m.key(studentID), 0, historyCap-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]OriginEntry, 0, len(raw))
	for _, item := range raw {
		origin, ts, ok := strings.Cut(item, "|")
		e := OriginEntry{Origin: origin}
		if ok {
			if unix, err := strconv.ParseInt(ts, 10, 64); err == nil {
				e.SeenAt = time.Unix(unix, 0).UTC()
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// IsSuspicious asks the policy about an origin against the stored
// history. Redis trouble degrades to "not suspicious" — this signal must
// never get in the way of attendance.
func (m *Monitor) IsSuspicious(ctx context.Context, studentID, origin string) bool {
	recent, err := m.History(ctx, studentID)
	if err != nil {
		m.log.Warn("origin history lookup failed",
			zap.String("student_id", studentID), zap.Error(err))
		return false
	}
	return m.policy.Suspicious(recent, origin)
}

func (m *Monitor) key(studentID string) string {
	return m.prefix + studentID
}

// SubnetPolicy flags an origin when it matches neither any of the last
// Window origins nor their /24-equivalent prefixes. Non-IPv4 origins
// only ever match exactly.
type SubnetPolicy struct {
	Window int
}

// Suspicious implements OriginPolicy. An empty history is a first
// sighting, not an anomaly.
func (p SubnetPolicy) Suspicious(recent []OriginEntry, origin string) bool {
	if len(recent) == 0 {
		return false
	}
	window := p.Window
	if window <= 0 {
		window = 5
	}
	if len(recent) > window {
		recent = recent[:window]
	}
	prefix := subnetPrefix(origin)
	for _, e := range recent {
		if e.Origin == origin {
			return false
		}
		if prefix != "" && subnetPrefix(e.Origin) == prefix {
			return false
		}
	}
	return true
}

// subnetPrefix returns the first three dot-separated octets of an IPv4
// address, or "" when the origin is not IPv4-shaped.
func subnetPrefix(origin string) string {
	parts := strings.Split(origin, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".")
}
