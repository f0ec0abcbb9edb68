package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creatorpay/internal/config"
)

const (
	keyPayoutRequestUser = "payout:rate:user:%s"
	keyPayoutLockUser    = "payout:lock:user:%s"
	keySweeperLock       = "payout:lock:sweeper:%s"
)

// PayoutLimiter guards request-payout per user and keeps sweeps single-flight
// across replicas. A nil limiter allows everything.
type PayoutLimiter struct {
	bucket *TokenBucket
	locker *Locker

	rate           float64
	burst          int
	lockTTL        time.Duration
	sweeperLockTTL time.Duration
}

func NewPayoutLimiter(cfg config.Config, client *redis.Client) *PayoutLimiter {
	if client == nil || !cfg.RateLimit.Enabled {
		return nil
	}
	return &PayoutLimiter{
		bucket:         NewTokenBucket(client),
		locker:         NewLocker(client),
		rate:           cfg.RateLimit.PayoutRequestRate,
		burst:          cfg.RateLimit.PayoutRequestBurst,
		lockTTL:        cfg.RateLimit.PayoutLockTTL,
		sweeperLockTTL: cfg.RateLimit.SweeperLockTTL,
	}
}

func (l *PayoutLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PayoutLimiter) AllowRequest(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() || l.rate <= 0 || l.burst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPayoutRequestUser, strings.TrimSpace(userID)), l.rate, l.burst)
}

// LockUser serializes payout requests of one user. Returns ErrLockHeld while
// another request of the same user is in flight.
func (l *PayoutLimiter) LockUser(ctx context.Context, userID string) (*Lease, error) {
	if !l.Enabled() {
		return nil, nil
	}
	return l.locker.Acquire(ctx, fmt.Sprintf(keyPayoutLockUser, strings.TrimSpace(userID)), l.lockTTL)
}

func (l *PayoutLimiter) LockSweeper(ctx context.Context, job string) (*Lease, error) {
	if !l.Enabled() {
		return nil, nil
	}
	return l.locker.Acquire(ctx, fmt.Sprintf(keySweeperLock, job), l.sweeperLockTTL)
}
