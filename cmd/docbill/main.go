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
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/migration"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/payment"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/paymentlink"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/providers"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/ratelimit"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/scheduler"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/server"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/log"
	"go.uber.org/fx"
)

// The monolith: HTTP API plus the in-process scheduler. Deployments that
// want batch work isolated run apps/scheduler separately and disable jobs
// here via SCHEDULER_ENABLED_JOBS.
func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Cross-cutting services
		authorization.Module,
		audit.Module,
		providers.Module,
		ratelimit.Module,

		// Billing domains
		billingconfig.Module,
		client.Module,
		usage.Module,
		maildelivery.Module,
		paymentlink.Module,
		invoice.Module,
		reminder.Module,
		payment.Module,

		scheduler.Module,
		server.Module,
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
