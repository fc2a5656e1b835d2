package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/config"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	creatordomain "github.com/looksell/looksell/internal/creator/domain"
	creatorrepo "github.com/looksell/looksell/internal/creator/repository"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	ledgerservice "github.com/looksell/looksell/internal/ledger/service"
	"github.com/looksell/looksell/internal/migration"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	"github.com/looksell/looksell/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fakeCapturer struct {
	status    paymentsdomain.CaptureStatus
	message   string
	err       error
	calls     int
	lastReq   paymentsdomain.CaptureRequest
	seenKeys  map[string]bool
	onCapture func()
}

func (f *fakeCapturer) Capture(ctx context.Context, req paymentsdomain.CaptureRequest) (paymentsdomain.CaptureResult, error) {
	f.calls++
	f.lastReq = req
	if f.seenKeys == nil {
		f.seenKeys = map[string]bool{}
	}
	f.seenKeys[req.IdempotencyKey] = true
	if f.onCapture != nil {
		f.onCapture()
	}
	if f.err != nil {
		return paymentsdomain.CaptureResult{}, f.err
	}
	return paymentsdomain.CaptureResult{
		ProviderPaymentID: fmt.Sprintf("pi_test_%d", f.calls),
		Status:            f.status,
		Message:           f.message,
	}, nil
}

type purchaseFixture struct {
	db       *gorm.DB
	svc      *Service
	capturer *fakeCapturer
	clock    *clock.FakeClock
	node     *snowflake.Node
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, migration.Run(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	capturer := &fakeCapturer{status: paymentsdomain.CaptureSucceeded}
	cfg := config.Config{
		Platform: config.PlatformConfig{
			CommissionRate:            0.15,
			MinimumPurchasePriceCents: 100,
		},
	}

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fc,
	})

	svc := &Service{
		db:          db,
		log:         zaptest.NewLogger(t),
		cfg:         cfg,
		genID:       node,
		clock:       fc,
		capturer:    capturer,
		creatorRepo: creatorrepo.Provide(),
		ledger:      ledgerSvc,
	}

	return &purchaseFixture{db: db, svc: svc, capturer: capturer, clock: fc, node: node}
}

func (f *purchaseFixture) seedCreator(t *testing.T, rate *float64) snowflake.ID {
	t.Helper()
	userID := f.node.Generate()
	require.NoError(t, f.db.Create(&creatordomain.CreatorProfile{
		ID:             f.node.Generate(),
		UserID:         userID,
		Status:         creatordomain.CreatorStatusActive,
		CommissionRate: rate,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}).Error)
	return userID
}

func (f *purchaseFixture) seedContent(t *testing.T, creatorID snowflake.ID, model contentdomain.PricingModel, priceCents *int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&contentdomain.Content{
		ID:           id,
		CreatorID:    creatorID,
		Title:        "Test Content",
		Slug:         fmt.Sprintf("test-content-%s", id),
		PricingModel: model,
		PriceCents:   priceCents,
		Status:       contentdomain.ContentStatusPublished,
		Visibility:   contentdomain.VisibilityPublic,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}).Error)
	return id
}

func priceOf(cents int64) *int64 { return &cents }

func TestCreatePurchase_SettlesAtomically(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(2000))
	buyerID := f.node.Generate()

	resp, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)

	assert.Equal(t, purchasedomain.PurchaseStatusCompleted, resp.Purchase.Status)
	assert.Equal(t, int64(2000), resp.Purchase.AmountCents)
	assert.Equal(t, int64(300), resp.Purchase.PlatformCommissionCents)
	assert.Equal(t, int64(1700), resp.Purchase.CreatorEarningsCents)
	assert.NotEmpty(t, resp.PaymentID)

	var content contentdomain.Content
	require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
	assert.Equal(t, int64(1), content.PurchaseCount)

	var profile creatordomain.CreatorProfile
	require.NoError(t, f.db.First(&profile, "user_id = ?", creatorID).Error)
	assert.Equal(t, int64(1700), profile.TotalRevenueCents)

	var entry ledgerdomain.Transaction
	require.NoError(t, f.db.First(&entry, "type = ? AND payment_id = ?", ledgerdomain.TransactionTypePurchase, resp.PaymentID).Error)
	assert.Equal(t, buyerID, entry.UserID)
	assert.Equal(t, int64(2000), entry.AmountCents)
	assert.Equal(t, string(purchasedomain.PurchaseStatusCompleted), entry.Status)
}

func TestCreatePurchase_CreatorRateOverride(t *testing.T) {
	f := newPurchaseFixture(t)
	rate := 0.20
	creatorID := f.seedCreator(t, &rate)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingBoth, priceOf(2000))

	resp, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         f.node.Generate(),
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(400), resp.Purchase.PlatformCommissionCents)
	assert.Equal(t, int64(1600), resp.Purchase.CreatorEarningsCents)
}

func TestCreatePurchase_RejectsDoublePurchase(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentA := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	contentB := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	buyerID := f.node.Generate()

	_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentA,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentA,
		PaymentMethodID: "pm_card_visa",
	})
	assert.ErrorIs(t, err, purchasedomain.ErrAlreadyPurchased)
	assert.Equal(t, 1, f.capturer.calls)

	// A different item is still purchasable.
	_, err = f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentB,
		PaymentMethodID: "pm_card_visa",
	})
	assert.NoError(t, err)
}

func TestCreatePurchase_LostDuplicateRaceLeavesAuditTrail(t *testing.T) {
	f := newPurchaseFixture(t)
	core, logs := observer.New(zap.InfoLevel)
	f.svc.log = zap.New(core)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(1000))
	buyerID := f.node.Generate()

	// A rival checkout lands its completed row after this call's lookup but
	// before its insert, so the unique index fires only after the capture.
	f.capturer.onCapture = func() {
		require.NoError(t, f.db.Create(&purchasedomain.Purchase{
			ID:            f.node.Generate(),
			BuyerID:       buyerID,
			ContentID:     contentID,
			CreatorID:     creatorID,
			AmountCents:   1000,
			PaymentMethod: "stripe",
			PaymentID:     "pi_rival",
			Status:        purchasedomain.PurchaseStatusCompleted,
			CreatedAt:     f.clock.Now(),
			UpdatedAt:     f.clock.Now(),
		}).Error)
	}

	_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	assert.ErrorIs(t, err, purchasedomain.ErrAlreadyPurchased)
	assert.Equal(t, 1, f.capturer.calls)

	// The capture went through, so the captured payment id must survive in
	// the log for reconciliation.
	entries := logs.FilterMessage("purchase capture lost duplicate race").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pi_test_1", entries[0].ContextMap()["payment_id"])
	assert.Equal(t, buyerID.String(), entries[0].ContextMap()["buyer_id"])
}

func TestCreatePurchase_Preconditions(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	buyerID := f.node.Generate()

	t.Run("unknown content", func(t *testing.T) {
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       f.node.Generate(),
			PaymentMethodID: "pm_card_visa",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrContentNotFound)
	})

	t.Run("free content", func(t *testing.T) {
		contentID := f.seedContent(t, creatorID, contentdomain.PricingFree, nil)
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrInvalidPricingModel)
	})

	t.Run("subscription only content", func(t *testing.T) {
		contentID := f.seedContent(t, creatorID, contentdomain.PricingSubscription, nil)
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrInvalidPricingModel)
	})

	t.Run("price below minimum", func(t *testing.T) {
		contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(50))
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrMissingPrice)
	})

	t.Run("missing payment method", func(t *testing.T) {
		contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: " ",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrInvalidPaymentMethod)
	})

	assert.Equal(t, 0, f.capturer.calls)
}

func TestCreatePurchase_ProviderFailureLeavesNothingBehind(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(2000))
	f.capturer.err = errors.New("card_declined")

	_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         f.node.Generate(),
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	assert.ErrorIs(t, err, purchasedomain.ErrPaymentFailed)

	var purchases, entries int64
	f.db.Model(&purchasedomain.Purchase{}).Count(&purchases)
	f.db.Model(&ledgerdomain.Transaction{}).Count(&entries)
	assert.Zero(t, purchases)
	assert.Zero(t, entries)

	var content contentdomain.Content
	require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
	assert.Zero(t, content.PurchaseCount)
}

func TestCreatePurchase_DeclinedCaptureIsPaymentFailed(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(2000))
	f.capturer.status = paymentsdomain.CaptureFailed
	f.capturer.message = "insufficient_funds"

	_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         f.node.Generate(),
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	assert.ErrorIs(t, err, purchasedomain.ErrPaymentFailed)
	assert.Contains(t, err.Error(), "insufficient_funds")

	var purchases int64
	f.db.Model(&purchasedomain.Purchase{}).Count(&purchases)
	assert.Zero(t, purchases)
}

func TestCreatePurchase_UsesFreshIdempotencyKeys(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentA := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	contentB := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	buyerID := f.node.Generate()

	for _, contentID := range []snowflake.ID{contentA, contentB} {
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		require.NoError(t, err)
	}
	assert.Len(t, f.capturer.seenKeys, 2)
}

func TestHandlePaymentEvent_SettlesPendingPurchase(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(2000))
	buyerID := f.node.Generate()
	f.capturer.status = paymentsdomain.CapturePending

	resp, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, purchasedomain.PurchaseStatusPending, resp.Purchase.Status)

	// No settlement writes until the provider confirms.
	var content contentdomain.Content
	require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
	assert.Zero(t, content.PurchaseCount)

	event := &paymentsdomain.PaymentEvent{
		Type:              paymentsdomain.EventTypePaymentSucceeded,
		ProviderPaymentID: resp.PaymentID,
		AmountCents:       2000,
	}
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), event))

	var purchase purchasedomain.Purchase
	require.NoError(t, f.db.First(&purchase, "id = ?", resp.Purchase.ID).Error)
	assert.Equal(t, purchasedomain.PurchaseStatusCompleted, purchase.Status)

	require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
	assert.Equal(t, int64(1), content.PurchaseCount)

	var profile creatordomain.CreatorProfile
	require.NoError(t, f.db.First(&profile, "user_id = ?", creatorID).Error)
	assert.Equal(t, int64(1700), profile.TotalRevenueCents)

	var entry ledgerdomain.Transaction
	require.NoError(t, f.db.First(&entry, "payment_id = ?", resp.PaymentID).Error)
	assert.Equal(t, string(purchasedomain.PurchaseStatusCompleted), entry.Status)

	// Replayed deliveries are no-ops.
	require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), event))
	require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
	assert.Equal(t, int64(1), content.PurchaseCount)
}

func TestHandlePaymentEvent_FailedAndRefunded(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(2000))
	buyerID := f.node.Generate()

	t.Run("failed pending purchase", func(t *testing.T) {
		f.capturer.status = paymentsdomain.CapturePending
		resp, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), &paymentsdomain.PaymentEvent{
			Type:              paymentsdomain.EventTypePaymentFailed,
			ProviderPaymentID: resp.PaymentID,
		}))

		var purchase purchasedomain.Purchase
		require.NoError(t, f.db.First(&purchase, "id = ?", resp.Purchase.ID).Error)
		assert.Equal(t, purchasedomain.PurchaseStatusFailed, purchase.Status)

		var content contentdomain.Content
		require.NoError(t, f.db.First(&content, "id = ?", contentID).Error)
		assert.Zero(t, content.PurchaseCount)
	})

	t.Run("refunded completed purchase", func(t *testing.T) {
		f.capturer.status = paymentsdomain.CaptureSucceeded
		resp, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		require.NoError(t, err)

		require.NoError(t, f.svc.HandlePaymentEvent(context.Background(), &paymentsdomain.PaymentEvent{
			Type:              paymentsdomain.EventTypeRefunded,
			ProviderPaymentID: resp.PaymentID,
			AmountCents:       2000,
		}))

		var purchase purchasedomain.Purchase
		require.NoError(t, f.db.First(&purchase, "id = ?", resp.Purchase.ID).Error)
		assert.Equal(t, purchasedomain.PurchaseStatusRefunded, purchase.Status)

		var entry ledgerdomain.Transaction
		require.NoError(t, f.db.First(&entry,
			"type = ? AND payment_id = ?", ledgerdomain.TransactionTypeRefund, resp.PaymentID).Error)
		assert.Equal(t, int64(2000), entry.AmountCents)
	})

	t.Run("unknown payment id", func(t *testing.T) {
		err := f.svc.HandlePaymentEvent(context.Background(), &paymentsdomain.PaymentEvent{
			Type:              paymentsdomain.EventTypePaymentSucceeded,
			ProviderPaymentID: "pi_unknown",
		})
		assert.ErrorIs(t, err, purchasedomain.ErrNotFound)
	})
}

func TestListPurchases_ScopedToBuyer(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	buyerA := f.node.Generate()
	buyerB := f.node.Generate()

	for _, buyerID := range []snowflake.ID{buyerA, buyerB} {
		_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
			BuyerID:         buyerID,
			ContentID:       contentID,
			PaymentMethodID: "pm_card_visa",
		})
		require.NoError(t, err)
	}

	items, err := f.svc.List(context.Background(), purchasedomain.ListPurchasesRequest{BuyerID: buyerA})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, buyerA, items[0].BuyerID)

	got, err := f.svc.GetByID(context.Background(), buyerA, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, got.ID)

	_, err = f.svc.GetByID(context.Background(), buyerB, items[0].ID)
	assert.ErrorIs(t, err, purchasedomain.ErrNotFound)
}

func TestPurchaseUniqueIndex_GuardsCompletedPairs(t *testing.T) {
	f := newPurchaseFixture(t)
	creatorID := f.seedCreator(t, nil)
	contentID := f.seedContent(t, creatorID, contentdomain.PricingPurchase, priceOf(500))
	buyerID := f.node.Generate()

	_, err := f.svc.Create(context.Background(), purchasedomain.CreatePurchaseRequest{
		BuyerID:         buyerID,
		ContentID:       contentID,
		PaymentMethodID: "pm_card_visa",
	})
	require.NoError(t, err)

	// Even a write that skips the service-level lookup cannot produce a
	// second completed purchase for the pair.
	duplicate := purchasedomain.Purchase{
		ID:        f.node.Generate(),
		BuyerID:   buyerID,
		ContentID: contentID,
		CreatorID: creatorID,
		Status:    purchasedomain.PurchaseStatusCompleted,
		PaymentID: "pi_dup",
	}
	err = f.db.Create(&duplicate).Error
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))

	// The guard is scoped to completed rows; a refunded one may coexist.
	refunded := duplicate
	refunded.ID = f.node.Generate()
	refunded.PaymentID = "pi_refunded"
	refunded.Status = purchasedomain.PurchaseStatusRefunded
	require.NoError(t, f.db.Create(&refunded).Error)
}
