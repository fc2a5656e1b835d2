package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/looksell/looksell/internal/payout/domain"
)

type requestPayoutRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
	Instant     bool   `json:"instant"`
}

func (s *Server) RequestPayout(c *gin.Context) {
	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.Request(c.Request.Context(), payoutdomain.RequestPayoutRequest{
		CreatorID:   currentUserID(c),
		AmountCents: req.AmountCents,
		Method:      strings.TrimSpace(req.Method),
		Destination: strings.TrimSpace(req.Destination),
		Instant:     req.Instant,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayouts(c *gin.Context) {
	resp, err := s.payoutSvc.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayoutBalance(c *gin.Context) {
	available, err := s.payoutSvc.AvailableBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"available_cents": available}})
}
