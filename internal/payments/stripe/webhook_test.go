package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookTestSecret = "whsec_test"

func signedHeaders(t *testing.T, payload []byte, secret string, ts int64) http.Header {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := fmt.Fprintf(mac, "%d.%s", ts, payload)
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func TestNewWebhook_RequiresSecret(t *testing.T) {
	_, err := NewWebhook("   ")
	assert.ErrorIs(t, err, paymentsdomain.ErrInvalidConfig)
}

func TestVerify(t *testing.T) {
	w, err := NewWebhook(webhookTestSecret)
	require.NoError(t, err)
	ctx := context.Background()
	payload := []byte(`{"id":"evt_1"}`)
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, w.Verify(ctx, payload, signedHeaders(t, payload, webhookTestSecret, ts)))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, w.Verify(ctx, payload, http.Header{}), paymentsdomain.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		headers := signedHeaders(t, payload, "whsec_other", ts)
		assert.ErrorIs(t, w.Verify(ctx, payload, headers), paymentsdomain.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		headers := signedHeaders(t, payload, webhookTestSecret, ts)
		assert.ErrorIs(t, w.Verify(ctx, []byte(`{"id":"evt_2"}`), headers), paymentsdomain.ErrInvalidSignature)
	})

	t.Run("malformed header", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Stripe-Signature", "v1=deadbeef")
		assert.ErrorIs(t, w.Verify(ctx, payload, headers), paymentsdomain.ErrInvalidSignature)
	})
}

func TestParse_PaymentIntentSucceeded(t *testing.T) {
	w, err := NewWebhook(webhookTestSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": 1748736000,
		"data": {"object": {
			"id": "pi_1",
			"amount": 2000,
			"amount_received": 2000,
			"currency": "usd",
			"metadata": {"buyer_id": "42"}
		}}
	}`)

	event, err := w.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_1", event.ProviderEventID)
	assert.Equal(t, "pi_1", event.ProviderPaymentID)
	assert.Equal(t, paymentsdomain.EventTypePaymentSucceeded, event.Type)
	assert.Equal(t, int64(2000), event.AmountCents)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, "42", event.Metadata["buyer_id"])
}

func TestParse_PaymentIntentFailed(t *testing.T) {
	w, err := NewWebhook(webhookTestSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_2", "amount": 2000, "currency": "usd"}}
	}`)

	event, err := w.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, paymentsdomain.EventTypePaymentFailed, event.Type)
	assert.Equal(t, "pi_2", event.ProviderPaymentID)
	assert.Equal(t, int64(2000), event.AmountCents)
}

func TestParse_ChargeRefunded(t *testing.T) {
	w, err := NewWebhook(webhookTestSecret)
	require.NoError(t, err)

	payload := []byte(`{
		"id": "evt_3",
		"type": "charge.refunded",
		"data": {"object": {
			"id": "ch_1",
			"payment_intent": "pi_3",
			"amount": 2000,
			"amount_refunded": 2000,
			"currency": "usd"
		}}
	}`)

	event, err := w.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, paymentsdomain.EventTypeRefunded, event.Type)
	// Refunds resolve to the originating payment intent.
	assert.Equal(t, "pi_3", event.ProviderPaymentID)
	assert.Equal(t, int64(2000), event.AmountCents)
}

func TestParse_Rejections(t *testing.T) {
	w, err := NewWebhook(webhookTestSecret)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("unrelated event type", func(t *testing.T) {
		_, err := w.Parse(ctx, []byte(`{"id":"evt_4","type":"customer.created","data":{"object":{}}}`))
		assert.ErrorIs(t, err, paymentsdomain.ErrEventIgnored)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := w.Parse(ctx, []byte("not json"))
		assert.ErrorIs(t, err, paymentsdomain.ErrInvalidPayload)
	})

	t.Run("missing event id", func(t *testing.T) {
		_, err := w.Parse(ctx, []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`))
		assert.ErrorIs(t, err, paymentsdomain.ErrInvalidEvent)
	})

	t.Run("missing intent id", func(t *testing.T) {
		_, err := w.Parse(ctx, []byte(`{"id":"evt_5","type":"payment_intent.succeeded","data":{"object":{"amount":100}}}`))
		assert.ErrorIs(t, err, paymentsdomain.ErrInvalidEvent)
	})
}
