package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/looksell/looksell/internal/access/domain"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	payoutdomain "github.com/looksell/looksell/internal/payout/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware maps domain errors collected on the context to one
// JSON error response after the handler chain runs.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    sentinelCode(err),
			Message: "validation error",
		}
	case errors.Is(err, purchasedomain.ErrPaymentFailed),
		errors.Is(err, subscriptiondomain.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_failed",
			Code:    "payment_failed",
			Message: strings.TrimSpace(err.Error()),
		}
	case errors.Is(err, purchasedomain.ErrAlreadyPurchased),
		errors.Is(err, subscriptiondomain.ErrAlreadySubscribed),
		errors.Is(err, payoutdomain.ErrInsufficientBalance):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    sentinelCode(err),
			Message: "conflict",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentsdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, subscriptiondomain.ErrUnauthorized),
		errors.Is(err, contentdomain.ErrNotCreator):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    sentinelCode(err),
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, contentdomain.ErrInvalidTitle),
		errors.Is(err, contentdomain.ErrInvalidPricingModel),
		errors.Is(err, contentdomain.ErrInvalidStatus),
		errors.Is(err, contentdomain.ErrMissingPrice),
		errors.Is(err, contentdomain.ErrPriceBelowMinimum),
		errors.Is(err, contentdomain.ErrCreatorNotActive),
		errors.Is(err, creatordomain.ErrSuspended),
		errors.Is(err, purchasedomain.ErrInvalidPricingModel),
		errors.Is(err, purchasedomain.ErrMissingPrice),
		errors.Is(err, purchasedomain.ErrInvalidPaymentMethod),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotOffered),
		errors.Is(err, subscriptiondomain.ErrNotActive),
		errors.Is(err, subscriptiondomain.ErrInvalidPaymentMethod),
		errors.Is(err, payoutdomain.ErrBelowMinimumPayout),
		errors.Is(err, payoutdomain.ErrInvalidMethod),
		errors.Is(err, payoutdomain.ErrInvalidDestination),
		errors.Is(err, ledgerdomain.ErrInvalidType),
		errors.Is(err, paymentsdomain.ErrInvalidPayload),
		errors.Is(err, paymentsdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, contentdomain.ErrNotFound),
		errors.Is(err, creatordomain.ErrNotFound),
		errors.Is(err, accessdomain.ErrContentNotFound),
		errors.Is(err, purchasedomain.ErrContentNotFound),
		errors.Is(err, purchasedomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrCreatorNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, payoutdomain.ErrCreatorNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// sentinelCode surfaces the snake_case sentinel as a machine-readable code.
func sentinelCode(err error) string {
	for unwrapped := err; unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		err = unwrapped
	}
	code := err.Error()
	if strings.ContainsAny(code, " :") {
		return ""
	}
	return code
}
