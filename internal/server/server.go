package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/looksell/looksell/internal/access"
	accessdomain "github.com/looksell/looksell/internal/access/domain"
	"github.com/looksell/looksell/internal/config"
	"github.com/looksell/looksell/internal/content"
	contentdomain "github.com/looksell/looksell/internal/content/domain"
	"github.com/looksell/looksell/internal/creator"
	"github.com/looksell/looksell/internal/ledger"
	ledgerdomain "github.com/looksell/looksell/internal/ledger/domain"
	"github.com/looksell/looksell/internal/payments"
	paymentsdomain "github.com/looksell/looksell/internal/payments/domain"
	"github.com/looksell/looksell/internal/payout"
	payoutdomain "github.com/looksell/looksell/internal/payout/domain"
	"github.com/looksell/looksell/internal/purchase"
	purchasedomain "github.com/looksell/looksell/internal/purchase/domain"
	"github.com/looksell/looksell/internal/ratelimit"
	"github.com/looksell/looksell/internal/subscription"
	subscriptiondomain "github.com/looksell/looksell/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	MetricsModule,
	fx.Provide(registerGin),
	creator.Module,
	content.Module,
	access.Module,
	payments.Module,
	purchase.Module,
	subscription.Module,
	payout.Module,
	ledger.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, metrics *HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(MetricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, metrics *HTTPMetrics) *gin.Engine {
	return NewEngine(log, metrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	genID  *snowflake.Node

	contentSvc      contentdomain.Service
	accessSvc       accessdomain.Service
	purchaseSvc     purchasedomain.Service
	subscriptionSvc subscriptiondomain.Service
	payoutSvc       payoutdomain.Service
	ledgerSvc       ledgerdomain.Service
	webhooks        paymentsdomain.WebhookHandler
	limiter         *ratelimit.PurchaseLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	GenID           *snowflake.Node
	ContentSvc      contentdomain.Service
	AccessSvc       accessdomain.Service
	PurchaseSvc     purchasedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PayoutSvc       payoutdomain.Service
	LedgerSvc       ledgerdomain.Service
	Webhooks        paymentsdomain.WebhookHandler
	Limiter         *ratelimit.PurchaseLimiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		contentSvc:      p.ContentSvc,
		accessSvc:       p.AccessSvc,
		purchaseSvc:     p.PurchaseSvc,
		subscriptionSvc: p.SubscriptionSvc,
		payoutSvc:       p.PayoutSvc,
		ledgerSvc:       p.LedgerSvc,
		webhooks:        p.Webhooks,
		limiter:         p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Content --------
	api.GET("/contents", s.OptionalAuth(), s.ListContents)
	api.POST("/contents", s.AuthRequired(), s.CreateContent)
	api.GET("/contents/:id", s.OptionalAuth(), s.GetContentByID)
	api.PATCH("/contents/:id", s.AuthRequired(), s.UpdateContent)
	api.DELETE("/contents/:id", s.AuthRequired(), s.DeleteContent)
	api.GET("/contents/:id/access", s.OptionalAuth(), s.CheckContentAccess)

	// -------- Purchases --------
	api.GET("/purchases", s.AuthRequired(), s.ListPurchases)
	api.POST("/purchases", s.AuthRequired(), s.PurchaseRateLimit(), s.CreatePurchase)
	api.GET("/purchases/:id", s.AuthRequired(), s.GetPurchaseByID)

	// -------- Subscriptions --------
	api.GET("/subscriptions", s.AuthRequired(), s.ListSubscriptions)
	api.POST("/subscriptions", s.AuthRequired(), s.CreateSubscription)
	api.GET("/subscriptions/:id", s.AuthRequired(), s.GetSubscriptionByID)
	api.POST("/subscriptions/:id/renew", s.AuthRequired(), s.RenewSubscription)
	api.DELETE("/subscriptions/:id", s.AuthRequired(), s.CancelSubscription)

	// -------- Payouts --------
	api.GET("/payouts", s.AuthRequired(), s.ListPayouts)
	api.POST("/payouts", s.AuthRequired(), s.RequestPayout)
	api.GET("/payouts/balance", s.AuthRequired(), s.GetPayoutBalance)

	// -------- Ledger --------
	api.GET("/transactions", s.AuthRequired(), s.ListTransactions)

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/stripe", s.HandlePaymentWebhook)
}
