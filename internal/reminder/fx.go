package reminder

import (
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	reminderdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/reminder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder",
	fx.Provide(
		service.NewService,
		func(svc reminderdomain.Service) invoicedomain.ReminderCanceller { return svc },
	),
)
