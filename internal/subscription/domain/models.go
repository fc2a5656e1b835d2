// Package domain contains the subscription lifecycle models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is a recurring grant of access to a creator's catalog.
// Expiry is evaluated at read time: there is no background sweep flipping
// rows to expired.
//
// At most one active subscription may exist per (subscriber, creator); the
// application-level lookup is backed by a partial unique index on
// (subscriber_id, creator_id) WHERE status = 'active'.
type Subscription struct {
	ID                snowflake.ID       `json:"id" gorm:"primaryKey"`
	SubscriberID      snowflake.ID       `json:"subscriber_id" gorm:"not null;index:idx_subscriptions_subscriber_creator"`
	CreatorID         snowflake.ID       `json:"creator_id" gorm:"not null;index:idx_subscriptions_subscriber_creator"`
	Status            SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	MonthlyPriceCents int64              `json:"monthly_price_cents" gorm:"not null"`
	StartDate         time.Time          `json:"start_date" gorm:"not null"`
	ExpirationDate    time.Time          `json:"expiration_date" gorm:"not null"`
	TotalPaidCents    int64              `json:"total_paid_cents" gorm:"not null;default:0"`
	RenewalCount      int64              `json:"renewal_count" gorm:"not null;default:0"`
	CanceledAt        *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time          `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// GrantsAccessAt reports whether the subscription grants access at the given
// instant. A canceled subscription keeps access until its expiration date.
func (s Subscription) GrantsAccessAt(now time.Time) bool {
	if s.Status == SubscriptionStatusExpired {
		return false
	}
	return !s.ExpirationDate.Before(now)
}

var (
	ErrCreatorNotFound        = errors.New("creator_not_found")
	ErrSubscriptionNotOffered = errors.New("subscription_not_offered")
	ErrAlreadySubscribed      = errors.New("already_subscribed")
	ErrNotFound               = errors.New("subscription_not_found")
	ErrUnauthorized           = errors.New("subscription_unauthorized")
	ErrNotActive              = errors.New("subscription_not_active")
	ErrInvalidPaymentMethod   = errors.New("invalid_payment_method")
	ErrPaymentFailed          = errors.New("payment_failed")
)

type CreateSubscriptionRequest struct {
	SubscriberID    snowflake.ID `json:"-"`
	CreatorID       snowflake.ID `json:"creator_id,string"`
	PaymentMethodID string       `json:"payment_method_id"`
}

type CreateSubscriptionResponse struct {
	Subscription  Subscription `json:"subscription"`
	PaymentID     string       `json:"payment_id"`
	PaymentStatus string       `json:"payment_status"`
}

type RenewSubscriptionRequest struct {
	SubscriberID    snowflake.ID `json:"-"`
	SubscriptionID  snowflake.ID `json:"-"`
	PaymentMethodID string       `json:"payment_method_id"`
}

// Service orchestrates the subscription lifecycle. Every state change either
// commits together with its ledger entry or not at all.
type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
	Cancel(ctx context.Context, subscriberID, subscriptionID snowflake.ID) (Subscription, error)
	Renew(ctx context.Context, req RenewSubscriptionRequest) (CreateSubscriptionResponse, error)
	GetByID(ctx context.Context, subscriberID, subscriptionID snowflake.ID) (Subscription, error)
	List(ctx context.Context, subscriberID snowflake.ID) ([]Subscription, error)
	FindActive(ctx context.Context, subscriberID, creatorID snowflake.ID) (*Subscription, error)
}
