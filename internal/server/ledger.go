package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
)

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		Type     string `form:"type"`
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), ledgerdomain.ListTransactionsRequest{
		UserID:   currentUserID(c),
		Type:     ledgerdomain.TransactionType(strings.TrimSpace(query.Type)),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
