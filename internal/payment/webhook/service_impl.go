package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	auditdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/adapters"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	PaymentSvc paymentdomain.Service
	Adapters   *adapters.Registry
	AuditSvc   auditdomain.Service
	Cfg        config.Config
}

type Service struct {
	log           *zap.Logger
	paymentSvc    paymentdomain.Service
	adapters      *adapters.Registry
	auditSvc      auditdomain.Service
	webhookSecret string
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		log:           p.Log.Named("payment.webhook"),
		paymentSvc:    p.PaymentSvc,
		adapters:      p.Adapters,
		auditSvc:      p.AuditSvc,
		webhookSecret: p.Cfg.PaymentGatewayWebhookSecret,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{
		WebhookSecret: s.webhookSecret,
	})
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider))
		s.auditSvc.AuditLog(ctx, "payment.webhook_rejected", "webhook", provider, map[string]any{
			"reason":       "invalid_signature",
			"payload_size": len(payload),
		})
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		// Event types we don't handle are acknowledged, not retried.
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	if event.RawPayload == nil {
		event.RawPayload = payload
	}

	err = s.paymentSvc.ProcessEvent(ctx, event, payload)
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		return nil
	}
	return err
}
