package maildelivery

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("maildelivery",
	fx.Provide(service.NewService),
)
