package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/audit"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/scheduler"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/log"
	"go.uber.org/fx"
)

// Standalone batch runner: invoice generation, reminder sweeps and mail
// retries without the HTTP server. Migrations are owned by the API process.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		authorization.Module,
		audit.Module,
		providers.Module,

		billingconfig.Module,
		client.Module,
		usage.Module,
		maildelivery.Module,
		paymentlink.Module,
		invoice.Module,
		reminder.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
