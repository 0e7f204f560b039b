package usage

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/repository"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.NewLedgerReader),
	fx.Provide(service.NewService),
)
