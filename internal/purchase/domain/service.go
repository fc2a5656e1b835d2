package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
)

type CreatePurchaseRequest struct {
	BuyerID         snowflake.ID `json:"-"`
	ContentID       snowflake.ID `json:"content_id"`
	PaymentMethodID string       `json:"payment_method_id"`
}

type CreatePurchaseResponse struct {
	Purchase      Purchase `json:"purchase"`
	PaymentID     string   `json:"payment_id"`
	PaymentStatus string   `json:"payment_status"`
}

type ListPurchasesRequest struct {
	BuyerID  snowflake.ID
	Page     int
	PageSize int
}

type Service interface {
	Create(ctx context.Context, req CreatePurchaseRequest) (CreatePurchaseResponse, error)
	GetByID(ctx context.Context, buyerID, purchaseID snowflake.ID) (Purchase, error)
	List(ctx context.Context, req ListPurchasesRequest) ([]Purchase, error)
	// HandlePaymentEvent settles a pending purchase when the verified
	// provider event arrives.
	HandlePaymentEvent(ctx context.Context, event *paymentsdomain.PaymentEvent) error
}

var (
	ErrContentNotFound      = errors.New("content_not_found")
	ErrInvalidPricingModel  = errors.New("invalid_pricing_model")
	ErrMissingPrice         = errors.New("missing_price")
	ErrAlreadyPurchased     = errors.New("already_purchased")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrPaymentFailed        = errors.New("payment_failed")
	ErrNotFound             = errors.New("purchase_not_found")
)
