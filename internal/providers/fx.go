package providers

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/email"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
