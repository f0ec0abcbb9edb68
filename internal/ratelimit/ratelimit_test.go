package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter := NewPayoutLimiter(config.Config{}, nil)
	require.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowRequest(context.Background(), "creator-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	lease, err := limiter.LockUser(context.Background(), "creator-1")
	require.NoError(t, err)
	assert.NoError(t, lease.Release(context.Background()))

	lease, err = limiter.LockSweeper(context.Background(), "evidence_deadlines")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestLockerRequiresClient(t *testing.T) {
	var locker *Locker
	_, err := locker.Acquire(context.Background(), "k", time.Second)
	assert.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, retryAfter(true, 0, 1))
	assert.Equal(t, 5*time.Second, retryAfter(false, 0, 0.2))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, bucketTTL(0.2, 3))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 0))
}

func TestToInt64(t *testing.T) {
	assert.EqualValues(t, 3, toInt64(int64(3)))
	assert.EqualValues(t, 42, toInt64("42"))
	assert.EqualValues(t, 0, toInt64(nil))
}
