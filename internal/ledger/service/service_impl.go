package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/looksell/looksell/internal/clock"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Record appends a ledger row inside the caller's transaction. The insert is
// idempotent on (type, payment_id): replaying a settlement for the same
// provider payment does not duplicate the trail.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry ledgerdomain.Transaction) error {
	if entry.UserID == 0 {
		return ledgerdomain.ErrInvalidUser
	}
	if _, err := parseType(string(entry.Type)); err != nil {
		return err
	}
	if entry.AmountCents < 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(entry.Currency) == "" {
		return ledgerdomain.ErrInvalidCurrency
	}
	if strings.TrimSpace(entry.PaymentID) == "" {
		return ledgerdomain.ErrInvalidPaymentID
	}

	if entry.ID == 0 {
		entry.ID = s.genID.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, user_id, type, amount_cents, currency, payment_method, payment_id, status, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, payment_id) DO NOTHING`,
		entry.ID,
		entry.UserID,
		entry.Type,
		entry.AmountCents,
		entry.Currency,
		entry.PaymentMethod,
		entry.PaymentID,
		entry.Status,
		entry.Metadata,
		entry.CreatedAt,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already recorded",
			zap.String("type", string(entry.Type)),
			zap.String("payment_id", entry.PaymentID),
		)
	}
	return nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListTransactionsRequest) ([]ledgerdomain.Transaction, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&ledgerdomain.Transaction{})
	if req.UserID != 0 {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.Type != "" {
		entryType, err := parseType(string(req.Type))
		if err != nil {
			return nil, err
		}
		query = query.Where("type = ?", entryType)
	}

	var items []ledgerdomain.Transaction
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, err
}

// MarkStatus is the only permitted mutation of an existing ledger row.
func (s *Service) MarkStatus(ctx context.Context, tx *gorm.DB, entryType ledgerdomain.TransactionType, paymentID, status string) error {
	if strings.TrimSpace(paymentID) == "" {
		return ledgerdomain.ErrInvalidPaymentID
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE transactions SET status = ? WHERE type = ? AND payment_id = ?`,
		status,
		entryType,
		paymentID,
	).Error
}

func parseType(value string) (ledgerdomain.TransactionType, error) {
	entryType := ledgerdomain.TransactionType(strings.TrimSpace(value))
	switch entryType {
	case ledgerdomain.TransactionTypePurchase,
		ledgerdomain.TransactionTypeSubscription,
		ledgerdomain.TransactionTypeRenewal,
		ledgerdomain.TransactionTypePayout,
		ledgerdomain.TransactionTypeRefund,
		ledgerdomain.TransactionTypeAffiliate:
		return entryType, nil
	default:
		return "", ledgerdomain.ErrInvalidType
	}
}
