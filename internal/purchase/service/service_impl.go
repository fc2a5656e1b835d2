package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/commission"
	"github.com/looksell/looksell/internal/config"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	"github.com/looksell/looksell/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	genID *snowflake.Node
	clock clock.Clock

	capturer    paymentsdomain.Capturer
	creatorRepo creatordomain.Repository
	ledger      ledgerdomain.Service
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	Capturer    paymentsdomain.Capturer
	CreatorRepo creatordomain.Repository
	Ledger      ledgerdomain.Service
}

func NewService(p ServiceParam) purchasedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("purchase.service"),
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		capturer:    p.Capturer,
		creatorRepo: p.CreatorRepo,
		ledger:      p.Ledger,
	}
}

// Create runs the purchase settlement flow: precondition checks, commission
// split, external capture, then one transaction persisting the purchase row,
// the content/creator counters, and the ledger entry. Nothing is persisted
// before the capture call.
func (s *Service) Create(ctx context.Context, req purchasedomain.CreatePurchaseRequest) (purchasedomain.CreatePurchaseResponse, error) {
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrInvalidPaymentMethod
	}

	var content contentdomain.Content
	err := s.db.WithContext(ctx).
		Where("id = ? AND status != ?", req.ContentID, contentdomain.ContentStatusDeleted).
		First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrContentNotFound
		}
		return purchasedomain.CreatePurchaseResponse{}, err
	}

	if !content.PricingModel.RequiresPurchase() {
		return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrInvalidPricingModel
	}
	if content.PriceCents == nil || *content.PriceCents < s.cfg.Platform.MinimumPurchasePriceCents {
		return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrMissingPrice
	}

	completed, err := s.hasCompletedPurchase(ctx, req.BuyerID, req.ContentID)
	if err != nil {
		return purchasedomain.CreatePurchaseResponse{}, err
	}
	if completed {
		return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrAlreadyPurchased
	}

	rate, err := s.effectiveCommissionRate(ctx, content.CreatorID)
	if err != nil {
		return purchasedomain.CreatePurchaseResponse{}, err
	}

	amountCents := *content.PriceCents
	commissionCents, earningsCents, err := commission.Split(amountCents, rate)
	if err != nil {
		return purchasedomain.CreatePurchaseResponse{}, err
	}

	result, err := s.capturer.Capture(ctx, paymentsdomain.CaptureRequest{
		AmountCents:     amountCents,
		Currency:        "USD",
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  uuid.NewString(),
		Metadata: map[string]string{
			"buyer_id":   req.BuyerID.String(),
			"content_id": req.ContentID.String(),
			"creator_id": content.CreatorID.String(),
		},
	})
	if err != nil {
		return purchasedomain.CreatePurchaseResponse{}, fmt.Errorf("%w: %v", purchasedomain.ErrPaymentFailed, err)
	}
	if result.Status == paymentsdomain.CaptureFailed {
		return purchasedomain.CreatePurchaseResponse{}, fmt.Errorf("%w: %s", purchasedomain.ErrPaymentFailed, result.Message)
	}

	status := purchasedomain.PurchaseStatusPending
	if result.Status == paymentsdomain.CaptureSucceeded {
		status = purchasedomain.PurchaseStatusCompleted
	}

	now := s.clock.Now()
	purchase := purchasedomain.Purchase{
		ID:                      s.genID.Generate(),
		BuyerID:                 req.BuyerID,
		ContentID:               req.ContentID,
		CreatorID:               content.CreatorID,
		AmountCents:             amountCents,
		PlatformCommissionCents: commissionCents,
		CreatorEarningsCents:    earningsCents,
		PaymentMethod:           "stripe",
		PaymentID:               result.ProviderPaymentID,
		Status:                  status,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&purchase).Error; err != nil {
			return err
		}
		if status == purchasedomain.PurchaseStatusCompleted {
			if err := s.applySettlement(ctx, tx, &purchase); err != nil {
				return err
			}
		}
		return s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
			UserID:        purchase.BuyerID,
			Type:          ledgerdomain.TransactionTypePurchase,
			AmountCents:   purchase.AmountCents,
			Currency:      "USD",
			PaymentMethod: purchase.PaymentMethod,
			PaymentID:     purchase.PaymentID,
			Status:        string(status),
			Metadata: map[string]interface{}{
				"content_id":  purchase.ContentID.String(),
				"purchase_id": purchase.ID.String(),
			},
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent purchase won the unique index. The capture
			// already went through, so leave a trail for reconciliation.
			s.log.Error("purchase capture lost duplicate race",
				zap.String("payment_id", result.ProviderPaymentID),
				zap.String("buyer_id", req.BuyerID.String()),
				zap.String("content_id", req.ContentID.String()),
			)
			return purchasedomain.CreatePurchaseResponse{}, purchasedomain.ErrAlreadyPurchased
		}
		// The provider already captured the payment; losing the local write
		// is an inconsistency that needs manual reconciliation.
		s.log.Error("purchase persistence failed after capture",
			zap.String("payment_id", result.ProviderPaymentID),
			zap.String("buyer_id", req.BuyerID.String()),
			zap.String("content_id", req.ContentID.String()),
			zap.Error(err),
		)
		return purchasedomain.CreatePurchaseResponse{}, err
	}

	return purchasedomain.CreatePurchaseResponse{
		Purchase:      purchase,
		PaymentID:     result.ProviderPaymentID,
		PaymentStatus: string(result.Status),
	}, nil
}

// applySettlement applies the counter updates that must commit atomically
// with a completed purchase.
func (s *Service) applySettlement(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase) error {
	if err := tx.WithContext(ctx).Exec(
		`UPDATE contents SET purchase_count = purchase_count + 1, updated_at = ? WHERE id = ?`,
		s.clock.Now(),
		purchase.ContentID,
	).Error; err != nil {
		return err
	}
	return s.creatorRepo.AddRevenue(ctx, tx, purchase.CreatorID, purchase.CreatorEarningsCents)
}

func (s *Service) GetByID(ctx context.Context, buyerID, purchaseID snowflake.ID) (purchasedomain.Purchase, error) {
	var purchase purchasedomain.Purchase
	err := s.db.WithContext(ctx).
		Where("id = ? AND buyer_id = ?", purchaseID, buyerID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return purchasedomain.Purchase{}, purchasedomain.ErrNotFound
		}
		return purchasedomain.Purchase{}, err
	}
	return purchase, nil
}

func (s *Service) List(ctx context.Context, req purchasedomain.ListPurchasesRequest) ([]purchasedomain.Purchase, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	var items []purchasedomain.Purchase
	err := s.db.WithContext(ctx).
		Where("buyer_id = ?", req.BuyerID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	return items, err
}

// HandlePaymentEvent settles pending purchases from verified provider
// events. Succeeded events complete the purchase and apply the same atomic
// counter updates as a synchronous capture; failed events mark it failed;
// refund events mark a completed purchase refunded and append a refund
// ledger row.
func (s *Service) HandlePaymentEvent(ctx context.Context, event *paymentsdomain.PaymentEvent) error {
	var purchase purchasedomain.Purchase
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", event.ProviderPaymentID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return purchasedomain.ErrNotFound
		}
		return err
	}

	switch event.Type {
	case paymentsdomain.EventTypePaymentSucceeded:
		if purchase.Status != purchasedomain.PurchaseStatusPending {
			return nil
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.transition(ctx, tx, &purchase, purchasedomain.PurchaseStatusCompleted); err != nil {
				return err
			}
			if err := s.applySettlement(ctx, tx, &purchase); err != nil {
				return err
			}
			return s.ledger.MarkStatus(ctx, tx, ledgerdomain.TransactionTypePurchase, purchase.PaymentID, string(purchasedomain.PurchaseStatusCompleted))
		})
	case paymentsdomain.EventTypePaymentFailed:
		if purchase.Status != purchasedomain.PurchaseStatusPending {
			return nil
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.transition(ctx, tx, &purchase, purchasedomain.PurchaseStatusFailed); err != nil {
				return err
			}
			return s.ledger.MarkStatus(ctx, tx, ledgerdomain.TransactionTypePurchase, purchase.PaymentID, string(purchasedomain.PurchaseStatusFailed))
		})
	case paymentsdomain.EventTypeRefunded:
		if purchase.Status != purchasedomain.PurchaseStatusCompleted {
			return nil
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.transition(ctx, tx, &purchase, purchasedomain.PurchaseStatusRefunded); err != nil {
				return err
			}
			return s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
				UserID:        purchase.BuyerID,
				Type:          ledgerdomain.TransactionTypeRefund,
				AmountCents:   event.AmountCents,
				Currency:      "USD",
				PaymentMethod: purchase.PaymentMethod,
				PaymentID:     purchase.PaymentID,
				Status:        string(purchasedomain.PurchaseStatusRefunded),
				Metadata: map[string]interface{}{
					"purchase_id": purchase.ID.String(),
				},
			})
		})
	default:
		return nil
	}
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, purchase *purchasedomain.Purchase, target purchasedomain.PurchaseStatus) error {
	purchase.Status = target
	purchase.UpdatedAt = s.clock.Now()
	return tx.WithContext(ctx).Exec(
		`UPDATE purchases SET status = ?, updated_at = ? WHERE id = ?`,
		purchase.Status,
		purchase.UpdatedAt,
		purchase.ID,
	).Error
}

func (s *Service) hasCompletedPurchase(ctx context.Context, buyerID, contentID snowflake.ID) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM purchases WHERE buyer_id = ? AND content_id = ? AND status = ?`,
		buyerID,
		contentID,
		purchasedomain.PurchaseStatusCompleted,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) effectiveCommissionRate(ctx context.Context, creatorID snowflake.ID) (float64, error) {
	profile, err := s.creatorRepo.FindByUserID(ctx, s.db, creatorID)
	if err != nil {
		return 0, err
	}
	if profile != nil && profile.CommissionRate != nil {
		return *profile.CommissionRate, nil
	}
	return s.cfg.Platform.CommissionRate, nil
}
