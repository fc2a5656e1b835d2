package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
)

type createSubscriptionRequest struct {
	CreatorID       string `json:"creator_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	creatorID, err := parseID(req.CreatorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		SubscriberID:    currentUserID(c),
		CreatorID:       creatorID,
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	subscriptionID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.GetByID(c.Request.Context(), currentUserID(c), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	resp, err := s.subscriptionSvc.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type renewSubscriptionRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) RenewSubscription(c *gin.Context) {
	subscriptionID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req renewSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.subscriptionSvc.Renew(c.Request.Context(), subscriptiondomain.RenewSubscriptionRequest{
		SubscriberID:    currentUserID(c),
		SubscriptionID:  subscriptionID,
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	subscriptionID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), currentUserID(c), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
