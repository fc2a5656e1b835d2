package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/config"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
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

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		capturer:    p.Capturer,
		creatorRepo: p.CreatorRepo,
		ledger:      p.Ledger,
	}
}

// Create subscribes a user to a creator for one period. The first month is
// captured up front; the subscription row, the creator's subscriber and
// revenue counters, and the ledger entry commit in one transaction.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.CreateSubscriptionResponse, error) {
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidPaymentMethod
	}

	profile, err := s.creatorRepo.FindByUserID(ctx, s.db, req.CreatorID)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	if profile == nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrCreatorNotFound
	}
	if !profile.SubscriptionEnabled ||
		profile.SubscriptionPriceCents == nil ||
		*profile.SubscriptionPriceCents < s.cfg.Platform.MinimumSubscriptionPriceCents {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrSubscriptionNotOffered
	}

	existing, err := s.FindActive(ctx, req.SubscriberID, req.CreatorID)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	if existing != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrAlreadySubscribed
	}

	priceCents := *profile.SubscriptionPriceCents
	result, err := s.capture(ctx, priceCents, req.PaymentMethodID, map[string]string{
		"subscriber_id": req.SubscriberID.String(),
		"creator_id":    req.CreatorID.String(),
		"type":          "subscription",
	})
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	now := s.clock.Now()
	subscription := subscriptiondomain.Subscription{
		ID:                s.genID.Generate(),
		SubscriberID:      req.SubscriberID,
		CreatorID:         req.CreatorID,
		Status:            subscriptiondomain.SubscriptionStatusActive,
		MonthlyPriceCents: priceCents,
		StartDate:         now,
		ExpirationDate:    now.Add(s.period()),
		TotalPaidCents:    priceCents,
		RenewalCount:      0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Expiry is lazy, so a lapsed subscription still sits at
		// status=active and would collide with the partial unique index.
		// Retire it before inserting the new row.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE subscriptions SET status = ?, updated_at = ?
			 WHERE subscriber_id = ? AND creator_id = ? AND status = ? AND expiration_date < ?`,
			subscriptiondomain.SubscriptionStatusExpired,
			now,
			req.SubscriberID,
			req.CreatorID,
			subscriptiondomain.SubscriptionStatusActive,
			now,
		).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&subscription).Error; err != nil {
			return err
		}
		if err := s.creatorRepo.AddSubscriber(ctx, tx, req.CreatorID, 1); err != nil {
			return err
		}
		if err := s.creatorRepo.AddRevenue(ctx, tx, req.CreatorID, priceCents); err != nil {
			return err
		}
		return s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
			UserID:        req.SubscriberID,
			Type:          ledgerdomain.TransactionTypeSubscription,
			AmountCents:   priceCents,
			Currency:      "USD",
			PaymentMethod: "stripe",
			PaymentID:     result.ProviderPaymentID,
			Status:        "completed",
			Metadata: map[string]interface{}{
				"subscription_id": subscription.ID.String(),
				"creator_id":      req.CreatorID.String(),
			},
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// A concurrent subscribe won the unique index. The capture
			// already went through, so leave a trail for reconciliation.
			s.log.Error("subscription capture lost duplicate race",
				zap.String("payment_id", result.ProviderPaymentID),
				zap.String("subscriber_id", req.SubscriberID.String()),
				zap.String("creator_id", req.CreatorID.String()),
			)
			return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrAlreadySubscribed
		}
		s.log.Error("subscription persistence failed after capture",
			zap.String("payment_id", result.ProviderPaymentID),
			zap.String("subscriber_id", req.SubscriberID.String()),
			zap.String("creator_id", req.CreatorID.String()),
			zap.Error(err),
		)
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	return subscriptiondomain.CreateSubscriptionResponse{
		Subscription:  subscription,
		PaymentID:     result.ProviderPaymentID,
		PaymentStatus: string(result.Status),
	}, nil
}

// Cancel marks the subscription canceled. Access is retained until the
// existing expiration date.
func (s *Service) Cancel(ctx context.Context, subscriberID, subscriptionID snowflake.ID) (subscriptiondomain.Subscription, error) {
	subscription, err := s.load(ctx, subscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription.SubscriberID != subscriberID {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrUnauthorized
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotActive
	}

	now := s.clock.Now()
	subscription.Status = subscriptiondomain.SubscriptionStatusCanceled
	subscription.CanceledAt = &now
	subscription.UpdatedAt = now

	err = s.db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, canceled_at = ?, updated_at = ? WHERE id = ?`,
		subscription.Status,
		subscription.CanceledAt,
		subscription.UpdatedAt,
		subscription.ID,
	).Error
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return subscription, nil
}

// Renew captures a fresh period payment and extends the subscription to
// now + one period. A late renewal does not bank time from the prior
// expiration date, and renewal clears any cancellation mark.
func (s *Service) Renew(ctx context.Context, req subscriptiondomain.RenewSubscriptionRequest) (subscriptiondomain.CreateSubscriptionResponse, error) {
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrInvalidPaymentMethod
	}

	subscription, err := s.load(ctx, req.SubscriptionID)
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}
	if subscription.SubscriberID != req.SubscriberID {
		return subscriptiondomain.CreateSubscriptionResponse{}, subscriptiondomain.ErrUnauthorized
	}

	result, err := s.capture(ctx, subscription.MonthlyPriceCents, req.PaymentMethodID, map[string]string{
		"subscription_id": subscription.ID.String(),
		"type":            "renewal",
	})
	if err != nil {
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	now := s.clock.Now()
	subscription.Status = subscriptiondomain.SubscriptionStatusActive
	subscription.ExpirationDate = now.Add(s.period())
	subscription.TotalPaidCents += subscription.MonthlyPriceCents
	subscription.RenewalCount++
	subscription.CanceledAt = nil
	subscription.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(
			`UPDATE subscriptions
			 SET status = ?, expiration_date = ?,
			     total_paid_cents = total_paid_cents + ?,
			     renewal_count = renewal_count + 1,
			     canceled_at = NULL, updated_at = ?
			 WHERE id = ?`,
			subscription.Status,
			subscription.ExpirationDate,
			subscription.MonthlyPriceCents,
			subscription.UpdatedAt,
			subscription.ID,
		).Error; err != nil {
			return err
		}
		if err := s.creatorRepo.AddRevenue(ctx, tx, subscription.CreatorID, subscription.MonthlyPriceCents); err != nil {
			return err
		}
		return s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
			UserID:        subscription.SubscriberID,
			Type:          ledgerdomain.TransactionTypeRenewal,
			AmountCents:   subscription.MonthlyPriceCents,
			Currency:      "USD",
			PaymentMethod: "stripe",
			PaymentID:     result.ProviderPaymentID,
			Status:        "completed",
			Metadata: map[string]interface{}{
				"subscription_id": subscription.ID.String(),
			},
		})
	})
	if err != nil {
		s.log.Error("renewal persistence failed after capture",
			zap.String("payment_id", result.ProviderPaymentID),
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
		return subscriptiondomain.CreateSubscriptionResponse{}, err
	}

	return subscriptiondomain.CreateSubscriptionResponse{
		Subscription:  subscription,
		PaymentID:     result.ProviderPaymentID,
		PaymentStatus: string(result.Status),
	}, nil
}

func (s *Service) GetByID(ctx context.Context, subscriberID, subscriptionID snowflake.ID) (subscriptiondomain.Subscription, error) {
	subscription, err := s.load(ctx, subscriptionID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription.SubscriberID != subscriberID {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotFound
	}
	return subscription, nil
}

func (s *Service) List(ctx context.Context, subscriberID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindActive returns the active, unexpired subscription for the pair, or nil.
func (s *Service) FindActive(ctx context.Context, subscriberID, creatorID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).
		Where("subscriber_id = ? AND creator_id = ? AND status = ? AND expiration_date >= ?",
			subscriberID,
			creatorID,
			subscriptiondomain.SubscriptionStatusActive,
			s.clock.Now(),
		).
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

func (s *Service) load(ctx context.Context, subscriptionID snowflake.ID) (subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Where("id = ?", subscriptionID).First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotFound
		}
		return subscriptiondomain.Subscription{}, err
	}
	return subscription, nil
}

// capture charges one period up front. Anything short of a succeeded capture
// rejects the operation, leaving subscription state untouched.
func (s *Service) capture(ctx context.Context, amountCents int64, paymentMethodID string, metadata map[string]string) (paymentsdomain.CaptureResult, error) {
	result, err := s.capturer.Capture(ctx, paymentsdomain.CaptureRequest{
		AmountCents:     amountCents,
		Currency:        "USD",
		PaymentMethodID: paymentMethodID,
		IdempotencyKey:  uuid.NewString(),
		Metadata:        metadata,
	})
	if err != nil {
		return paymentsdomain.CaptureResult{}, fmt.Errorf("%w: %v", subscriptiondomain.ErrPaymentFailed, err)
	}
	if result.Status != paymentsdomain.CaptureSucceeded {
		return paymentsdomain.CaptureResult{}, fmt.Errorf("%w: %s", subscriptiondomain.ErrPaymentFailed, result.Message)
	}
	return result, nil
}

func (s *Service) period() time.Duration {
	return time.Duration(s.cfg.Platform.SubscriptionPeriodDays) * 24 * time.Hour
}
