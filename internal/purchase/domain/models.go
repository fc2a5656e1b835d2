// Package domain contains persistence models for one-time purchases.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PurchaseStatus represents settlement states for a purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// Purchase records a buyer's one-time purchase of a content item.
// AmountCents always equals PlatformCommissionCents + CreatorEarningsCents.
// At most one completed purchase may exist per (buyer, content); the storage
// layer enforces this with a partial unique index since the application-level
// lookup alone is not race-safe.
type Purchase struct {
	ID                      snowflake.ID   `json:"id" gorm:"primaryKey"`
	BuyerID                 snowflake.ID   `json:"buyer_id" gorm:"not null;index:idx_purchases_buyer_content"`
	ContentID               snowflake.ID   `json:"content_id" gorm:"not null;index:idx_purchases_buyer_content"`
	CreatorID               snowflake.ID   `json:"creator_id" gorm:"not null;index"`
	AmountCents             int64          `json:"amount_cents" gorm:"not null"`
	PlatformCommissionCents int64          `json:"platform_commission_cents" gorm:"not null"`
	CreatorEarningsCents    int64          `json:"creator_earnings_cents" gorm:"not null"`
	PaymentMethod           string         `json:"payment_method" gorm:"type:text;not null"`
	PaymentID               string         `json:"payment_id" gorm:"type:text;not null;index"`
	Status                  PurchaseStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt               time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time      `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Purchase) TableName() string { return "purchases" }
