// Package server wires the billing HTTP surface: admin routes, the public
// payment page API and the payment provider webhook.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	linkdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/ratelimit"
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Params struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	BillingCfgSvc configdomain.Service
	InvoiceSvc    invoicedomain.Service
	MailSvc       maildomain.Service
	ReminderSvc   reminderdomain.Service
	PaymentSvc    paymentdomain.Service
	WebhookSvc    paymentdomain.WebhookService
	LinkSvc       linkdomain.Service
	PayLimiter    *ratelimit.PublicPayLimiter `optional:"true"`
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	billingCfgSvc configdomain.Service
	invoiceSvc    invoicedomain.Service
	mailSvc       maildomain.Service
	reminderSvc   reminderdomain.Service
	paymentSvc    paymentdomain.Service
	webhookSvc    paymentdomain.WebhookService
	linkSvc       linkdomain.Service
	payLimiter    *ratelimit.PublicPayLimiter
}

func NewServer(p Params) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		billingCfgSvc: p.BillingCfgSvc,
		invoiceSvc:    p.InvoiceSvc,
		mailSvc:       p.MailSvc,
		reminderSvc:   p.ReminderSvc,
		paymentSvc:    p.PaymentSvc,
		webhookSvc:    p.WebhookSvc,
		linkSvc:       p.LinkSvc,
		payLimiter:    p.PayLimiter,
	}

	svc.registerAdminRoutes()
	svc.registerPublicRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin/billing")
	admin.Use(ActorFromHeaders())

	admin.GET("/config", s.GetBillingConfig)
	admin.PUT("/config", s.UpdateBillingConfig)

	admin.POST("/invoices/generate", s.GenerateInvoices)
	admin.GET("/invoices", s.ListInvoices)
	admin.GET("/invoices/:id", s.GetInvoice)
	admin.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)
	admin.GET("/invoices/:id/transactions", s.ListInvoiceTransactions)
	admin.POST("/invoices/:id/mark-paid", s.MarkInvoicePaid)
	admin.POST("/invoices/:id/cancel", s.CancelInvoice)
	admin.PUT("/invoices/:id/notes", s.UpdateInvoiceNotes)
	admin.POST("/invoices/:id/send-email", s.SendInvoiceEmail)

	admin.GET("/mail-logs", s.ListMailLogs)
	admin.POST("/mail-logs/:id/retry", s.RetryMailLog)

	admin.POST("/reminders/sweep", s.RunReminderSweep)

	admin.GET("/reports/revenue", s.RevenueReport)
	admin.GET("/reports/summary", s.SummaryReport)
}

func (s *Server) registerPublicRoutes() {
	pay := s.engine.Group("/pay")
	pay.Use(s.PublicPayRateLimit())

	pay.GET("/:token", s.GetPublicInvoice)
	pay.POST("/:token/intent", s.CreatePublicPaymentIntent)
	pay.POST("/:token/charge", s.SubmitPublicPayment)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payment/:provider", s.IngestPaymentWebhook)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
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
