package billingconfig

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingconfig.service",
	fx.Provide(service.NewService),
)
