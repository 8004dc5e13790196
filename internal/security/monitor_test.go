package security

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) *Monitor {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMonitor(client, nil, nil)
}

func TestRecordOriginCapsHistoryAtTen(t *testing.T) {
	m := newTestMonitor(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, m.RecordOrigin(ctx, "2024001", fmt.Sprintf("203.0.%d.1", i)))
	}

	history, err := m.History(ctx, "2024001")
	require.NoError(t, err)
	assert.Len(t, history, 10)
	// Newest first; the two oldest entries were evicted.
	assert.Equal(t, "203.0.11.1", history[0].Origin)
	assert.Equal(t, "203.0.2.1", history[9].Origin)
	assert.False(t, history[0].SeenAt.IsZero())
}

func TestIsSuspicious(t *testing.T) {
	m := newTestMonitor(t)
	ctx := context.Background()

	t.Run("first sighting is not suspicious", func(t *testing.T) {
		assert.False(t, m.IsSuspicious(ctx, "fresh", "203.0.113.7"))
	})

	require.NoError(t, m.RecordOrigin(ctx, "2024001", "203.0.113.7"))

	t.Run("exact repeat", func(t *testing.T) {
		assert.False(t, m.IsSuspicious(ctx, "2024001", "203.0.113.7"))
	})

	t.Run("same /24", func(t *testing.T) {
		assert.False(t, m.IsSuspicious(ctx, "2024001", "203.0.113.200"))
	})

	t.Run("unrelated origin", func(t *testing.T) {
		assert.True(t, m.IsSuspicious(ctx, "2024001", "198.51.100.4"))
	})
}

func TestIsSuspiciousOnlyConsidersLastFive(t *testing.T) {
	m := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, m.RecordOrigin(ctx, "2024001", "203.0.113.7"))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordOrigin(ctx, "2024001", fmt.Sprintf("198.51.%d.1", i)))
	}

	// 203.0.113.7 is now the sixth-most-recent origin; it can no longer
	// vouch for itself.
	assert.True(t, m.IsSuspicious(ctx, "2024001", "203.0.113.7"))
}

func TestSubnetPolicy(t *testing.T) {
	p := SubnetPolicy{Window: 5}
	recent := []OriginEntry{{Origin: "203.0.113.7"}, {Origin: "10.0.0.5"}}

	assert.False(t, p.Suspicious(nil, "203.0.113.7"))
	assert.False(t, p.Suspicious(recent, "203.0.113.7"))
	assert.False(t, p.Suspicious(recent, "203.0.113.99"))
	assert.True(t, p.Suspicious(recent, "192.0.2.1"))

	t.Run("non-IPv4 origins only match exactly", func(t *testing.T) {
		v6 := []OriginEntry{{Origin: "2001:db8::1"}}
		assert.False(t, p.Suspicious(v6, "2001:db8::1"))
		assert.True(t, p.Suspicious(v6, "2001:db8::2"))
	})
}
