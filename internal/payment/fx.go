package payment

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/adapters"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/adapters/stripe"
	paymentdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/gateway"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/repository"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/service"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		newRegistry,
		newGateway,
		service.NewService,
		webhook.NewService,
	),
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(stripe.NewFactory())
}

func newGateway(cfg config.Config, log *zap.Logger) paymentdomain.Gateway {
	return gateway.NewStripeGateway(cfg.PaymentGatewaySecretKey, log)
}
