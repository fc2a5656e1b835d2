package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/config"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
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
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	CreatorRepo creatordomain.Repository
}

func NewService(p ServiceParam) contentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("content.service"),
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		creatorRepo: p.CreatorRepo,
	}
}

func (s *Service) Create(ctx context.Context, req contentdomain.CreateContentRequest) (contentdomain.Content, error) {
	if strings.TrimSpace(req.Title) == "" {
		return contentdomain.Content{}, contentdomain.ErrInvalidTitle
	}

	pricingModel, err := parsePricingModel(string(req.PricingModel))
	if err != nil {
		return contentdomain.Content{}, err
	}

	if pricingModel.RequiresPurchase() {
		if req.PriceCents == nil {
			return contentdomain.Content{}, contentdomain.ErrMissingPrice
		}
		if *req.PriceCents < s.cfg.Platform.MinimumPurchasePriceCents {
			return contentdomain.Content{}, contentdomain.ErrPriceBelowMinimum
		}
	}

	profile, err := s.creatorRepo.FindByUserID(ctx, s.db, req.CreatorID)
	if err != nil {
		return contentdomain.Content{}, err
	}
	if profile == nil || profile.Status != creatordomain.CreatorStatusActive {
		return contentdomain.Content{}, contentdomain.ErrCreatorNotActive
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = contentdomain.VisibilityPublic
	}

	id := s.genID.Generate()
	now := s.clock.Now()
	content := contentdomain.Content{
		ID:           id,
		CreatorID:    req.CreatorID,
		Title:        strings.TrimSpace(req.Title),
		Slug:         makeSlug(req.Title, id),
		Description:  req.Description,
		Category:     req.Category,
		PricingModel: pricingModel,
		PriceCents:   req.PriceCents,
		Status:       contentdomain.ContentStatusDraft,
		Visibility:   visibility,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.WithContext(ctx).Create(&content).Error; err != nil {
		return contentdomain.Content{}, err
	}

	return content, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (contentdomain.Content, error) {
	var content contentdomain.Content
	err := s.db.WithContext(ctx).Where("id = ? AND status != ?", id, contentdomain.ContentStatusDeleted).First(&content).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contentdomain.Content{}, contentdomain.ErrNotFound
		}
		return contentdomain.Content{}, err
	}
	return content, nil
}

func (s *Service) List(ctx context.Context, req contentdomain.ListContentRequest) (contentdomain.ListContentResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 24
	}

	query := s.db.WithContext(ctx).Model(&contentdomain.Content{}).
		Where("status = ? AND visibility = ?", contentdomain.ContentStatusPublished, contentdomain.VisibilityPublic)

	if req.CreatorID != 0 {
		query = query.Where("creator_id = ?", req.CreatorID)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.PriceMinCents != nil {
		query = query.Where("price_cents >= ?", *req.PriceMinCents)
	}
	if req.PriceMaxCents != nil {
		query = query.Where("price_cents <= ?", *req.PriceMaxCents)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return contentdomain.ListContentResponse{}, err
	}

	var items []contentdomain.Content
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error; err != nil {
		return contentdomain.ListContentResponse{}, err
	}

	totalPages := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPages++
	}

	return contentdomain.ListContentResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) Update(ctx context.Context, req contentdomain.UpdateContentRequest) (contentdomain.Content, error) {
	content, err := s.GetByID(ctx, req.ContentID)
	if err != nil {
		return contentdomain.Content{}, err
	}
	if content.CreatorID != req.CreatorID {
		return contentdomain.Content{}, contentdomain.ErrNotCreator
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return contentdomain.Content{}, contentdomain.ErrInvalidTitle
		}
		content.Title = strings.TrimSpace(*req.Title)
		content.Slug = makeSlug(content.Title, content.ID)
	}
	if req.Description != nil {
		content.Description = *req.Description
	}
	if req.PriceCents != nil {
		if content.PricingModel.RequiresPurchase() && *req.PriceCents < s.cfg.Platform.MinimumPurchasePriceCents {
			return contentdomain.Content{}, contentdomain.ErrPriceBelowMinimum
		}
		content.PriceCents = req.PriceCents
	}
	if req.Status != nil {
		switch *req.Status {
		case contentdomain.ContentStatusDraft, contentdomain.ContentStatusPublished:
			content.Status = *req.Status
		default:
			return contentdomain.Content{}, contentdomain.ErrInvalidStatus
		}
	}
	content.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&content).Error; err != nil {
		return contentdomain.Content{}, err
	}
	return content, nil
}

func (s *Service) Delete(ctx context.Context, contentID, creatorID snowflake.ID) error {
	content, err := s.GetByID(ctx, contentID)
	if err != nil {
		return err
	}
	if content.CreatorID != creatorID {
		return contentdomain.ErrNotCreator
	}

	return s.db.WithContext(ctx).Exec(
		`UPDATE contents SET status = ?, updated_at = ? WHERE id = ?`,
		contentdomain.ContentStatusDeleted,
		s.clock.Now(),
		contentID,
	).Error
}

func (s *Service) IncrementViewCount(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE contents SET view_count = view_count + 1 WHERE id = ?`,
		id,
	).Error
}

// makeSlug keeps the URL slug unique across identical titles by suffixing
// the content id.
func makeSlug(title string, id snowflake.ID) string {
	return fmt.Sprintf("%s-%s", slug.Make(strings.TrimSpace(title)), id)
}

func parsePricingModel(value string) (contentdomain.PricingModel, error) {
	model := contentdomain.PricingModel(strings.ToLower(strings.TrimSpace(value)))
	switch model {
	case contentdomain.PricingFree,
		contentdomain.PricingPurchase,
		contentdomain.PricingSubscription,
		contentdomain.PricingBoth:
		return model, nil
	default:
		return "", contentdomain.ErrInvalidPricingModel
	}
}
