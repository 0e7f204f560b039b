package client

import (
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("client.repository",
	fx.Provide(repository.New),
)
