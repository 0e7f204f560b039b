package pdf

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Renderer {
	return NewMaroto(cfg.PDFOutputDir)
}
