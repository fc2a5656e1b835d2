package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
)

type createPurchaseRequest struct {
	ContentID       string `json:"content_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) CreatePurchase(c *gin.Context) {
	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contentID, err := parseID(req.ContentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.purchaseSvc.Create(c.Request.Context(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         currentUserID(c),
		ContentID:       contentID,
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPurchaseByID(c *gin.Context) {
	purchaseID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.purchaseSvc.GetByID(c.Request.Context(), currentUserID(c), purchaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPurchases(c *gin.Context) {
	var query struct {
		Page     int `form:"page"`
		PageSize int `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.purchaseSvc.List(c.Request.Context(), purchasedomain.ListPurchasesRequest{
		BuyerID:  currentUserID(c),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
