package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
)

type createContentRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	PricingModel string `json:"pricing_model"`
	PriceCents   *int64 `json:"price_cents,omitempty"`
	Visibility   string `json:"visibility,omitempty"`
}

func (s *Server) CreateContent(c *gin.Context) {
	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contentSvc.Create(c.Request.Context(), contentdomain.CreateContentRequest{
		CreatorID:    currentUserID(c),
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Category:     strings.TrimSpace(req.Category),
		PricingModel: contentdomain.PricingModel(strings.TrimSpace(req.PricingModel)),
		PriceCents:   req.PriceCents,
		Visibility:   contentdomain.ContentVisibility(strings.TrimSpace(req.Visibility)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContentByID(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.contentSvc.GetByID(c.Request.Context(), contentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Views are best effort; a miss never fails the read.
	if err := s.contentSvc.IncrementViewCount(c.Request.Context(), contentID); err != nil {
		s.log.Warn("increment view count failed")
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContents(c *gin.Context) {
	var query struct {
		CreatorID     string `form:"creator_id"`
		Category      string `form:"category"`
		PriceMinCents *int64 `form:"price_min_cents"`
		PriceMaxCents *int64 `form:"price_max_cents"`
		Page          int    `form:"page"`
		PageSize      int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var creatorID snowflake.ID
	if raw := strings.TrimSpace(query.CreatorID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		creatorID = parsed
	}

	resp, err := s.contentSvc.List(c.Request.Context(), contentdomain.ListContentRequest{
		CreatorID:     creatorID,
		Category:      strings.TrimSpace(query.Category),
		PriceMinCents: query.PriceMinCents,
		PriceMaxCents: query.PriceMaxCents,
		Page:          query.Page,
		PageSize:      query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateContentRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"price_cents,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (s *Server) UpdateContent(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var status *contentdomain.ContentStatus
	if req.Status != nil {
		parsed := contentdomain.ContentStatus(strings.TrimSpace(*req.Status))
		status = &parsed
	}

	resp, err := s.contentSvc.Update(c.Request.Context(), contentdomain.UpdateContentRequest{
		ContentID:   contentID,
		CreatorID:   currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Status:      status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContent(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.contentSvc.Delete(c.Request.Context(), contentID, currentUserID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) CheckContentAccess(c *gin.Context) {
	contentID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	granted, err := s.accessSvc.HasAccess(c.Request.Context(), contentID, currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"has_access": granted}})
}
