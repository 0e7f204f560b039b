package audit

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewService),
)
