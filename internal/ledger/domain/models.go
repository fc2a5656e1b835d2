// Package domain contains the append-only money-movement ledger.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionType classifies a money movement.
type TransactionType string

const (
	TransactionTypePurchase     TransactionType = "purchase"
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeRenewal      TransactionType = "renewal"
	TransactionTypePayout       TransactionType = "payout"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeAffiliate    TransactionType = "affiliate"
)

// Transaction is the audit trail for every money movement. Rows are never
// mutated after creation except for status correction.
type Transaction struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID        snowflake.ID      `json:"user_id" gorm:"not null;index"`
	Type          TransactionType   `json:"type" gorm:"type:text;not null;uniqueIndex:idx_transactions_type_payment"`
	AmountCents   int64             `json:"amount_cents" gorm:"not null"`
	Currency      string            `json:"currency" gorm:"type:text;not null"`
	PaymentMethod string            `json:"payment_method" gorm:"type:text"`
	PaymentID     string            `json:"payment_id" gorm:"type:text;not null;uniqueIndex:idx_transactions_type_payment"`
	Status        string            `json:"status" gorm:"type:text;not null"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidType      = errors.New("invalid_type")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrInvalidPaymentID = errors.New("invalid_payment_id")
)

type ListTransactionsRequest struct {
	UserID   snowflake.ID
	Type     TransactionType
	Page     int
	PageSize int
}

// Service appends and reads ledger rows. Record runs inside the caller's
// transaction so the ledger row commits or rolls back together with the
// settlement writes it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Transaction) error
	List(ctx context.Context, req ListTransactionsRequest) ([]Transaction, error)
	MarkStatus(ctx context.Context, tx *gorm.DB, entryType TransactionType, paymentID, status string) error
}
