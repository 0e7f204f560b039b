package service

import (
	"context"

	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/actor"
	auditdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	AuthzSvc authorization.Service
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	authzSvc authorization.Service
	auditSvc auditdomain.Service
}

func NewService(p Params) configdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("billingconfig.service"),
		clock:    p.Clock,
		authzSvc: p.AuthzSvc,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Get(ctx context.Context) (configdomain.BillingConfiguration, error) {
	var cfg configdomain.BillingConfiguration
	err := s.db.WithContext(ctx).
		First(&cfg, "id = ?", configdomain.SingletonID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return configdomain.BillingConfiguration{}, configdomain.ErrNotFound
		}
		return configdomain.BillingConfiguration{}, err
	}
	return cfg, nil
}

func (s *Service) Update(ctx context.Context, req configdomain.UpdateRequest) (configdomain.BillingConfiguration, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectBillingConfig, authorization.ActionUpdate); err != nil {
		return configdomain.BillingConfiguration{}, err
	}

	cfg, err := s.Get(ctx)
	if err != nil {
		return configdomain.BillingConfiguration{}, err
	}

	applyUpdate(&cfg, req)
	if err := cfg.Validate(); err != nil {
		return configdomain.BillingConfiguration{}, err
	}

	who, _ := actor.FromContext(ctx)
	cfg.UpdatedBy = who.ID
	cfg.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&cfg).Error; err != nil {
		return configdomain.BillingConfiguration{}, err
	}

	s.auditSvc.AuditLog(ctx, "billing_config.updated", "billing_configuration", "1", map[string]any{
		"invoice_prefix":     cfg.InvoicePrefix,
		"currency":           cfg.Currency,
		"auto_generate":      cfg.AutoGenerateEnabled,
		"max_reminder_count": cfg.MaxReminderCount,
		"due_date_days":      cfg.DueDateDays,
	})
	return cfg, nil
}

func applyUpdate(cfg *configdomain.BillingConfiguration, req configdomain.UpdateRequest) {
	if req.MailerName != nil {
		cfg.MailerName = *req.MailerName
	}
	if req.MailerAddress != nil {
		cfg.MailerAddress = *req.MailerAddress
	}
	if req.InvoiceDateDay != nil {
		cfg.InvoiceDateDay = *req.InvoiceDateDay
	}
	if req.DueDateDays != nil {
		cfg.DueDateDays = *req.DueDateDays
	}
	if req.ReminderFrequencyDays != nil {
		cfg.ReminderFrequencyDays = *req.ReminderFrequencyDays
	}
	if req.MaxReminderCount != nil {
		cfg.MaxReminderCount = *req.MaxReminderCount
	}
	if req.AutoGenerateEnabled != nil {
		cfg.AutoGenerateEnabled = *req.AutoGenerateEnabled
	}
	if req.PaymentGateway != nil {
		cfg.PaymentGateway = *req.PaymentGateway
	}
	if req.InvoicePrefix != nil {
		cfg.InvoicePrefix = *req.InvoicePrefix
	}
	if req.Currency != nil {
		cfg.Currency = *req.Currency
	}
	if req.TaxRateBps != nil {
		cfg.TaxRateBps = *req.TaxRateBps
	}
	if req.MailMaxRetries != nil {
		cfg.MailMaxRetries = *req.MailMaxRetries
	}
	if req.PaymentLinkTTLDays != nil {
		cfg.PaymentLinkTTLDays = *req.PaymentLinkTTLDays
	}
}
