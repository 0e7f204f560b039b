package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerTotals is the read contract against the document-processing ledger.
type LedgerTotals struct {
	TotalDocuments int64
	TotalPages     int64
	TotalCostCents int64
}

// LedgerReader sums ledger rows for one client over an inclusive date range.
type LedgerReader interface {
	Totals(ctx context.Context, clientID snowflake.ID, periodStart, periodEnd time.Time) (LedgerTotals, error)
}

type Service interface {
	// Aggregate recomputes and upserts the ClientUsage snapshot for the
	// period. Re-running reflects current ledger state; callers that need a
	// frozen snapshot must not re-aggregate after invoicing.
	Aggregate(ctx context.Context, clientID snowflake.ID, periodStart, periodEnd time.Time) (ClientUsage, error)
}

var ErrInvalidPeriod = errors.New("invalid_usage_period")
