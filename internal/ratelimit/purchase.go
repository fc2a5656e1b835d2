package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/looksell/looksell/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPurchaseBuyer     = "purchase:buyer:%s"
	keyWebhookPaymentKey = "payments:webhook:lock:%s"

	webhookLockTTL = 30 * time.Second
)

// PurchaseLimiter throttles purchase attempts per buyer. Without a redis
// address it degrades open: purchases proceed unthrottled rather than
// failing closed on missing infrastructure.
type PurchaseLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	ratePerSecond float64
	burst         int
}

func NewPurchaseLimiter(cfg config.Config) *PurchaseLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" || cfg.Platform.PurchaseRatePerHour <= 0 {
		return &PurchaseLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &PurchaseLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(client),
		locker:        NewLocker(client),
		ratePerSecond: float64(cfg.Platform.PurchaseRatePerHour) / 3600,
		burst:         cfg.Platform.PurchaseRatePerHour,
	}
}

func (l *PurchaseLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowPurchase reports whether the buyer may start another purchase
// attempt, and how long to wait when not.
func (l *PurchaseLimiter) AllowPurchase(ctx context.Context, buyerID snowflake.ID) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyPurchaseBuyer, buyerID.String()), l.ratePerSecond, l.burst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}

// TryLockPayment serializes webhook settlement for one provider payment
// across instances. The returned token releases the lock.
func (l *PurchaseLimiter) TryLockPayment(ctx context.Context, paymentID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyWebhookPaymentKey, paymentID), webhookLockTTL)
}

func (l *PurchaseLimiter) ReleasePayment(ctx context.Context, paymentID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, fmt.Sprintf(keyWebhookPaymentKey, paymentID), token)
}
