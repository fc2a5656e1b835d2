package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/looksell/looksell/internal/access/domain"
	"github.com/looksell/looksell/internal/clock"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

func NewService(p ServiceParam) accessdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("access.service"),
		clock: p.Clock,
	}
}

func (s *Service) HasAccess(ctx context.Context, contentID, userID snowflake.ID) (bool, error) {
	var content contentdomain.Content
	err := s.db.WithContext(ctx).
		Where("id = ? AND status != ?", contentID, contentdomain.ContentStatusDeleted).
		First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, accessdomain.ErrContentNotFound
		}
		return false, err
	}

	if content.PricingModel == contentdomain.PricingFree {
		return true, nil
	}
	if userID == 0 {
		return false, nil
	}
	if content.CreatorID == userID {
		return true, nil
	}

	if content.PricingModel.RequiresPurchase() {
		granted, err := s.hasCompletedPurchase(ctx, userID, contentID)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}

	if content.PricingModel.IncludesSubscription() {
		granted, err := s.hasUnexpiredSubscription(ctx, userID, content.CreatorID)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}

	return false, nil
}

func (s *Service) hasCompletedPurchase(ctx context.Context, userID, contentID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM purchases WHERE buyer_id = ? AND content_id = ? AND status = ?`,
		userID,
		contentID,
		purchasedomain.PurchaseStatusCompleted,
	).Scan(&count).Error
	return count > 0, err
}

// hasUnexpiredSubscription includes canceled subscriptions that have not yet
// reached their expiration date: cancellation does not revoke access early.
func (s *Service) hasUnexpiredSubscription(ctx context.Context, userID, creatorID snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions
		 WHERE subscriber_id = ? AND creator_id = ? AND status != ? AND expiration_date >= ?`,
		userID,
		creatorID,
		subscriptiondomain.SubscriptionStatusExpired,
		s.clock.Now(),
	).Scan(&count).Error
	return count > 0, err
}
