package paymentlink

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentlink",
	fx.Provide(service.NewService),
)
