package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateContentRequest struct {
	CreatorID    snowflake.ID      `json:"-"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	PricingModel PricingModel      `json:"pricing_model"`
	PriceCents   *int64            `json:"price_cents,omitempty"`
	Visibility   ContentVisibility `json:"visibility,omitempty"`
}

type UpdateContentRequest struct {
	ContentID   snowflake.ID   `json:"-"`
	CreatorID   snowflake.ID   `json:"-"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	PriceCents  *int64         `json:"price_cents,omitempty"`
	Status      *ContentStatus `json:"status,omitempty"`
}

type ListContentRequest struct {
	CreatorID     snowflake.ID
	Category      string
	PriceMinCents *int64
	PriceMaxCents *int64
	Page          int
	PageSize      int
}

type ListContentResponse struct {
	Items      []Content `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int64     `json:"total_pages"`
}

type Service interface {
	Create(ctx context.Context, req CreateContentRequest) (Content, error)
	GetByID(ctx context.Context, id snowflake.ID) (Content, error)
	List(ctx context.Context, req ListContentRequest) (ListContentResponse, error)
	Update(ctx context.Context, req UpdateContentRequest) (Content, error)
	Delete(ctx context.Context, contentID, creatorID snowflake.ID) error
	IncrementViewCount(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNotFound            = errors.New("content_not_found")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidPricingModel = errors.New("invalid_pricing_model")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrMissingPrice        = errors.New("missing_price")
	ErrPriceBelowMinimum   = errors.New("price_below_minimum")
	ErrNotCreator          = errors.New("not_content_creator")
	ErrCreatorNotActive    = errors.New("creator_not_active")
)
