// Package domain contains persistence models for creator profiles.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreatorStatus represents lifecycle states for a creator profile.
type CreatorStatus string

const (
	CreatorStatusPending   CreatorStatus = "pending"
	CreatorStatusActive    CreatorStatus = "active"
	CreatorStatusSuspended CreatorStatus = "suspended"
)

// CreatorProfile aggregates a creator's marketplace state. TotalRevenueCents
// and TotalSubscribers are derived counters, mutated only through the
// settlement flows via Repository increments.
type CreatorProfile struct {
	ID                     snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID                 snowflake.ID  `json:"user_id" gorm:"not null;uniqueIndex"`
	Status                 CreatorStatus `json:"status" gorm:"type:text;not null;default:pending"`
	CommissionRate         *float64      `json:"commission_rate,omitempty" gorm:""`
	SubscriptionEnabled    bool          `json:"subscription_enabled" gorm:"not null;default:false"`
	SubscriptionPriceCents *int64        `json:"subscription_price_cents,omitempty" gorm:""`
	TotalRevenueCents      int64         `json:"total_revenue_cents" gorm:"not null;default:0"`
	TotalSubscribers       int64         `json:"total_subscribers" gorm:"not null;default:0"`
	CreatedAt              time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time     `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (CreatorProfile) TableName() string { return "creator_profiles" }

var (
	ErrNotFound  = errors.New("creator_not_found")
	ErrSuspended = errors.New("creator_suspended")
)

// Repository mutates creator aggregates. Increment methods run inside the
// caller's transaction and apply additive SQL updates, never
// read-modify-write.
type Repository interface {
	FindByUserID(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*CreatorProfile, error)
	Insert(ctx context.Context, tx *gorm.DB, profile *CreatorProfile) error
	AddRevenue(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amountCents int64) error
	AddSubscriber(ctx context.Context, tx *gorm.DB, userID snowflake.ID, delta int64) error
}
