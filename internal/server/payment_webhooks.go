package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	"go.uber.org/zap"
)

// HandlePaymentWebhook verifies the provider signature, parses the event,
// and settles the matching pending purchase. Deliveries for payments this
// service never initiated are acknowledged so the provider stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	if err := s.webhooks.Verify(ctx, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.webhooks.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentsdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	// Concurrent deliveries for one payment settle one at a time.
	token, locked, err := s.limiter.TryLockPayment(ctx, event.ProviderPaymentID)
	if err != nil {
		s.log.Warn("webhook lock unavailable", zap.Error(err))
	} else if !locked {
		c.JSON(http.StatusOK, gin.H{"status": "in_progress"})
		return
	} else {
		defer func() {
			if err := s.limiter.ReleasePayment(ctx, event.ProviderPaymentID, token); err != nil {
				s.log.Warn("webhook lock release failed", zap.Error(err))
			}
		}()
	}

	if err := s.purchaseSvc.HandlePaymentEvent(ctx, event); err != nil {
		if errors.Is(err, purchasedomain.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
