package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() creatordomain.Repository {
	return &repository{}
}

func (r *repository) FindByUserID(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*creatordomain.CreatorProfile, error) {
	var profile creatordomain.CreatorProfile
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, profile *creatordomain.CreatorProfile) error {
	return tx.WithContext(ctx).Create(profile).Error
}

func (r *repository) AddRevenue(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amountCents int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE creator_profiles
		 SET total_revenue_cents = total_revenue_cents + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		amountCents,
		userID,
	).Error
}

func (r *repository) AddSubscriber(ctx context.Context, tx *gorm.DB, userID snowflake.ID, delta int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE creator_profiles
		 SET total_subscribers = total_subscribers + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		delta,
		userID,
	).Error
}
