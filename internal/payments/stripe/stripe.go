// Package stripe implements the payment capture collaborator and webhook
// verification against the Stripe API.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
)

const apiBase = "https://api.stripe.com/v1"

type Capturer struct {
	secretKey  string
	httpClient *http.Client
	baseURL    string
}

func NewCapturer(secretKey string) (*Capturer, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, paymentsdomain.ErrInvalidConfig
	}
	return &Capturer{
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    apiBase,
	}, nil
}

type paymentIntent struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	LastError *intentError `json:"last_payment_error"`
	Error     *intentError `json:"error"`
}

type intentError struct {
	Message string `json:"message"`
}

// Capture creates and confirms a payment intent for the given amount. The
// idempotency key makes a replayed call return the original intent instead
// of charging twice.
func (c *Capturer) Capture(ctx context.Context, req paymentsdomain.CaptureRequest) (paymentsdomain.CaptureResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("payment_method", req.PaymentMethodID)
	form.Set("confirm", "true")
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("automatic_payment_methods[allow_redirects]", "never")
	for key, value := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return paymentsdomain.CaptureResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return paymentsdomain.CaptureResult{}, fmt.Errorf("%w: %v", paymentsdomain.ErrProviderError, err)
	}
	defer resp.Body.Close()

	var intent paymentIntent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return paymentsdomain.CaptureResult{}, fmt.Errorf("%w: %v", paymentsdomain.ErrProviderError, err)
	}

	if resp.StatusCode >= 400 {
		message := "payment declined"
		if intent.Error != nil && intent.Error.Message != "" {
			message = intent.Error.Message
		}
		return paymentsdomain.CaptureResult{
			ProviderPaymentID: intent.ID,
			Status:            paymentsdomain.CaptureFailed,
			Message:           message,
		}, nil
	}

	return paymentsdomain.CaptureResult{
		ProviderPaymentID: intent.ID,
		Status:            mapIntentStatus(intent.Status),
		Message:           lastErrorMessage(intent),
	}, nil
}

func mapIntentStatus(status string) paymentsdomain.CaptureStatus {
	switch strings.TrimSpace(status) {
	case "succeeded":
		return paymentsdomain.CaptureSucceeded
	case "processing", "requires_action", "requires_confirmation":
		return paymentsdomain.CapturePending
	default:
		return paymentsdomain.CaptureFailed
	}
}

func lastErrorMessage(intent paymentIntent) string {
	if intent.LastError != nil {
		return intent.LastError.Message
	}
	return ""
}
