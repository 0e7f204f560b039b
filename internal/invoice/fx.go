package invoice

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(service.NewService),
)
