// Package domain contains the payout request models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutMethod identifies where a payout is sent.
type PayoutMethod string

const (
	PayoutMethodBank   PayoutMethod = "bank"
	PayoutMethodPaypal PayoutMethod = "paypal"
)

// PayoutStatus represents lifecycle states for a payout. Settlement to
// completed happens in an external system; this service only creates
// pending rows.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Payout is a creator's request to withdraw earned revenue.
type Payout struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CreatorID   snowflake.ID `json:"creator_id" gorm:"not null;index"`
	AmountCents int64        `json:"amount_cents" gorm:"not null"`
	Method      PayoutMethod `json:"method" gorm:"type:text;not null"`
	Destination string       `json:"destination" gorm:"type:text;not null"`
	Status      PayoutStatus `json:"status" gorm:"type:text;not null;default:pending"`
	Instant     bool         `json:"instant" gorm:"not null;default:false"`
	FeeCents    int64        `json:"fee_cents" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }

var (
	ErrCreatorNotFound     = errors.New("creator_not_found")
	ErrInvalidMethod       = errors.New("invalid_payout_method")
	ErrInvalidDestination  = errors.New("invalid_payout_destination")
	ErrBelowMinimumPayout  = errors.New("below_minimum_payout")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrNotFound            = errors.New("payout_not_found")
)

type RequestPayoutRequest struct {
	CreatorID   snowflake.ID `json:"-"`
	AmountCents int64        `json:"amount_cents"`
	Method      string       `json:"method"`
	Destination string       `json:"destination"`
	Instant     bool         `json:"instant"`
}

// Service validates and records payout requests.
type Service interface {
	Request(ctx context.Context, req RequestPayoutRequest) (Payout, error)
	List(ctx context.Context, creatorID snowflake.ID) ([]Payout, error)
	AvailableBalance(ctx context.Context, creatorID snowflake.ID) (int64, error)
}
