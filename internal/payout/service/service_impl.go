package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/config"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	payoutdomain "github.com/looksell/looksell/internal/payout/domain"
	"github.com/shopspring/decimal"
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
	CreatorRepo creatordomain.Repository
	Ledger      ledgerdomain.Service
}

func NewService(p ServiceParam) payoutdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payout.service"),
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		creatorRepo: p.CreatorRepo,
		ledger:      p.Ledger,
	}
}

// Request records a pending payout. The amount plus the instant fee must fit
// inside the creator's available balance; settlement to completed happens in
// an external system and never here.
func (s *Service) Request(ctx context.Context, req payoutdomain.RequestPayoutRequest) (payoutdomain.Payout, error) {
	method, err := parseMethod(req.Method)
	if err != nil {
		return payoutdomain.Payout{}, err
	}
	if strings.TrimSpace(req.Destination) == "" {
		return payoutdomain.Payout{}, payoutdomain.ErrInvalidDestination
	}
	if req.AmountCents < s.cfg.Platform.MinimumPayoutCents {
		return payoutdomain.Payout{}, payoutdomain.ErrBelowMinimumPayout
	}

	profile, err := s.creatorRepo.FindByUserID(ctx, s.db, req.CreatorID)
	if err != nil {
		return payoutdomain.Payout{}, err
	}
	if profile == nil {
		return payoutdomain.Payout{}, payoutdomain.ErrCreatorNotFound
	}

	var feeCents int64
	if req.Instant {
		feeCents = instantFee(req.AmountCents, s.cfg.Platform.InstantPayoutFeeRate)
	}

	now := s.clock.Now()
	payout := payoutdomain.Payout{
		ID:          s.genID.Generate(),
		CreatorID:   req.CreatorID,
		AmountCents: req.AmountCents,
		Method:      method,
		Destination: req.Destination,
		Status:      payoutdomain.PayoutStatusPending,
		Instant:     req.Instant,
		FeeCents:    feeCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touching the profile row takes its write lock, serializing
		// concurrent requests so two cannot both read the same balance.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE creator_profiles SET updated_at = ? WHERE user_id = ?`,
			now,
			req.CreatorID,
		).Error; err != nil {
			return err
		}

		available, err := s.availableBalance(ctx, tx, req.CreatorID)
		if err != nil {
			return err
		}
		if req.AmountCents+feeCents > available {
			return payoutdomain.ErrInsufficientBalance
		}

		if err := tx.WithContext(ctx).Create(&payout).Error; err != nil {
			return err
		}
		return s.ledger.Record(ctx, tx, ledgerdomain.Transaction{
			UserID:        req.CreatorID,
			Type:          ledgerdomain.TransactionTypePayout,
			AmountCents:   payout.AmountCents,
			Currency:      "USD",
			PaymentMethod: string(method),
			PaymentID:     payout.ID.String(),
			Status:        string(payoutdomain.PayoutStatusPending),
			Metadata: map[string]interface{}{
				"destination": payout.Destination,
				"instant":     payout.Instant,
				"fee_cents":   payout.FeeCents,
			},
		})
	})
	if err != nil {
		return payoutdomain.Payout{}, err
	}
	return payout, nil
}

func (s *Service) List(ctx context.Context, creatorID snowflake.ID) ([]payoutdomain.Payout, error) {
	var items []payoutdomain.Payout
	err := s.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// AvailableBalance is earned revenue minus everything already committed to
// payouts that have not failed, fees included.
func (s *Service) AvailableBalance(ctx context.Context, creatorID snowflake.ID) (int64, error) {
	return s.availableBalance(ctx, s.db, creatorID)
}

func (s *Service) availableBalance(ctx context.Context, tx *gorm.DB, creatorID snowflake.ID) (int64, error) {
	profile, err := s.creatorRepo.FindByUserID(ctx, tx, creatorID)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, payoutdomain.ErrCreatorNotFound
	}

	var committed int64
	err = tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount_cents + fee_cents), 0)
		 FROM payouts
		 WHERE creator_id = ? AND status != ?`,
		creatorID,
		payoutdomain.PayoutStatusFailed,
	).Scan(&committed).Error
	if err != nil {
		return 0, err
	}
	return profile.TotalRevenueCents - committed, nil
}

// instantFee rounds half up to whole cents.
func instantFee(amountCents int64, rate float64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromFloat(rate)).
		Round(0).
		IntPart()
}

func parseMethod(value string) (payoutdomain.PayoutMethod, error) {
	method := payoutdomain.PayoutMethod(strings.TrimSpace(value))
	switch method {
	case payoutdomain.PayoutMethodBank, payoutdomain.PayoutMethodPaypal:
		return method, nil
	default:
		return "", payoutdomain.ErrInvalidMethod
	}
}
