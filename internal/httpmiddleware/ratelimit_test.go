package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustsAndIsolatesKeys(t *testing.T) {
	l := NewTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("203.0.113.7"))
	}
	assert.False(t, l.Allow("203.0.113.7"))

	// A different address has its own budget.
	assert.True(t, l.Allow("198.51.100.4"))
}
