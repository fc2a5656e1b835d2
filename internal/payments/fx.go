package payments

import (
	"github.com/looksell/looksell/internal/config"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	"github.com/looksell/looksell/internal/payments/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("payments",
	fx.Provide(NewCapturer),
	fx.Provide(NewWebhookHandler),
)

func NewCapturer(cfg config.Config) (paymentsdomain.Capturer, error) {
	return stripe.NewCapturer(cfg.StripeSecretKey)
}

func NewWebhookHandler(cfg config.Config) (paymentsdomain.WebhookHandler, error) {
	return stripe.NewWebhook(cfg.StripeWebhookSecret)
}
