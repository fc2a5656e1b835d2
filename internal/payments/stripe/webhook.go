package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
)

type Webhook struct {
	secret string
}

func NewWebhook(secret string) (*Webhook, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, paymentsdomain.ErrInvalidConfig
	}
	return &Webhook{secret: secret}, nil
}

func (w *Webhook) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentsdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentsdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(w.secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentsdomain.ErrInvalidSignature
}

func (w *Webhook) Parse(ctx context.Context, payload []byte) (*paymentsdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentsdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentsdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return w.parseIntent(event, payload, paymentsdomain.EventTypePaymentSucceeded)
	case "payment_intent.payment_failed":
		return w.parseIntent(event, payload, paymentsdomain.EventTypePaymentFailed)
	case "charge.refunded":
		return w.parseCharge(event, payload)
	default:
		return nil, paymentsdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeIntent struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
}

type stripeCharge struct {
	ID             string            `json:"id"`
	PaymentIntent  string            `json:"payment_intent"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Created        int64             `json:"created"`
	Metadata       map[string]string `json:"metadata"`
}

func (w *Webhook) parseIntent(event stripeEvent, payload []byte, eventType string) (*paymentsdomain.PaymentEvent, error) {
	var intent stripeIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentsdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentsdomain.ErrInvalidEvent
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}

	return &paymentsdomain.PaymentEvent{
		Provider:          "stripe",
		ProviderEventID:   event.ID,
		ProviderPaymentID: intent.ID,
		Type:              eventType,
		AmountCents:       amount,
		Currency:          strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:        timestamp(intent.Created, event.Created),
		Metadata:          intent.Metadata,
		RawPayload:        payload,
	}, nil
}

func (w *Webhook) parseCharge(event stripeEvent, payload []byte) (*paymentsdomain.PaymentEvent, error) {
	var charge stripeCharge
	if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
		return nil, paymentsdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(charge.ID) == "" {
		return nil, paymentsdomain.ErrInvalidEvent
	}

	amount := charge.Amount
	if charge.AmountRefunded > 0 {
		amount = charge.AmountRefunded
	}

	paymentID := strings.TrimSpace(charge.PaymentIntent)
	if paymentID == "" {
		paymentID = charge.ID
	}

	return &paymentsdomain.PaymentEvent{
		Provider:          "stripe",
		ProviderEventID:   event.ID,
		ProviderPaymentID: paymentID,
		Type:              paymentsdomain.EventTypeRefunded,
		AmountCents:       amount,
		Currency:          strings.ToUpper(strings.TrimSpace(charge.Currency)),
		OccurredAt:        timestamp(charge.Created, event.Created),
		Metadata:          charge.Metadata,
		RawPayload:        payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
