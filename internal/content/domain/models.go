// Package domain contains persistence models for the content catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PricingModel classifies how a content item may be accessed.
type PricingModel string

const (
	PricingFree         PricingModel = "free"
	PricingPurchase     PricingModel = "purchase"
	PricingSubscription PricingModel = "subscription"
	PricingBoth         PricingModel = "both"
)

// RequiresPurchase reports whether the model involves a one-time purchase.
func (m PricingModel) RequiresPurchase() bool {
	return m == PricingPurchase || m == PricingBoth
}

// IncludesSubscription reports whether a creator subscription grants access.
func (m PricingModel) IncludesSubscription() bool {
	return m == PricingSubscription || m == PricingBoth
}

// ContentStatus represents lifecycle states for a content item.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusDeleted   ContentStatus = "deleted"
)

type ContentVisibility string

const (
	VisibilityPublic   ContentVisibility = "public"
	VisibilityUnlisted ContentVisibility = "unlisted"
)

// Content is a digital good listed by a creator. PriceCents must be set and
// at or above the configured minimum whenever the pricing model involves a
// purchase.
type Content struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	CreatorID     snowflake.ID      `json:"creator_id" gorm:"not null;index"`
	Title         string            `json:"title" gorm:"type:text;not null"`
	Slug          string            `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_contents_slug"`
	Description   string            `json:"description" gorm:"type:text"`
	Category      string            `json:"category" gorm:"type:text"`
	PricingModel  PricingModel      `json:"pricing_model" gorm:"type:text;not null"`
	PriceCents    *int64            `json:"price_cents,omitempty" gorm:""`
	Status        ContentStatus     `json:"status" gorm:"type:text;not null;default:draft"`
	Visibility    ContentVisibility `json:"visibility" gorm:"type:text;not null;default:public"`
	PurchaseCount int64             `json:"purchase_count" gorm:"not null;default:0"`
	ViewCount     int64             `json:"view_count" gorm:"not null;default:0"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Content) TableName() string { return "contents" }
