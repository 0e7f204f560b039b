package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type LedgerReader struct {
	db *gorm.DB
}

func NewLedgerReader(p Params) usagedomain.LedgerReader {
	return &LedgerReader{db: p.DB}
}

func (r *LedgerReader) Totals(
	ctx context.Context,
	clientID snowflake.ID,
	periodStart, periodEnd time.Time,
) (usagedomain.LedgerTotals, error) {
	var totals usagedomain.LedgerTotals
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total_documents,
		        COALESCE(SUM(page_count), 0) AS total_pages,
		        COALESCE(SUM(cost_cents), 0) AS total_cost_cents
		 FROM document_usages
		 WHERE client_id = ? AND processed_at >= ? AND processed_at <= ?`,
		clientID,
		periodStart,
		periodEnd,
	).Scan(&totals).Error
	if err != nil {
		return usagedomain.LedgerTotals{}, err
	}
	return totals, nil
}
