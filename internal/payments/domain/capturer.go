// Package domain defines the payment-capture collaborator consumed by the
// settlement flows. The provider is a black box: no automatic retries, and
// provider errors surface verbatim.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CaptureStatus is the provider-reported outcome of a capture attempt.
type CaptureStatus string

const (
	CaptureSucceeded CaptureStatus = "succeeded"
	CapturePending   CaptureStatus = "pending"
	CaptureFailed    CaptureStatus = "failed"
)

type CaptureRequest struct {
	AmountCents     int64
	Currency        string
	PaymentMethodID string
	// IdempotencyKey guards against double charges when a capture call is
	// replayed for the same attempt.
	IdempotencyKey string
	Metadata       map[string]string
}

type CaptureResult struct {
	ProviderPaymentID string
	Status            CaptureStatus
	Message           string
}

type Capturer interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
	EventTypeRefunded         = "refunded"
)

// PaymentEvent is the canonical provider event parsed from a webhook.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              string
	AmountCents       int64
	Currency          string
	OccurredAt        time.Time
	Metadata          map[string]string
	RawPayload        []byte
}

// WebhookHandler verifies and parses provider webhook deliveries.
type WebhookHandler interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

var (
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrProviderError    = errors.New("provider_error")
)
