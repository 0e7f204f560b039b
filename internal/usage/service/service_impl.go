package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/clock"
	usagedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Ledger usagedomain.LedgerReader
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	ledger usagedomain.LedgerReader
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("usage.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		ledger: p.Ledger,
	}
}

func (s *Service) Aggregate(
	ctx context.Context,
	clientID snowflake.ID,
	periodStart, periodEnd time.Time,
) (usagedomain.ClientUsage, error) {
	if clientID == 0 || periodEnd.Before(periodStart) {
		return usagedomain.ClientUsage{}, usagedomain.ErrInvalidPeriod
	}

	totals, err := s.ledger.Totals(ctx, clientID, periodStart, periodEnd)
	if err != nil {
		// Ledger unreachable: fail without touching the snapshot.
		return usagedomain.ClientUsage{}, err
	}

	now := s.clock.Now()
	snapshot := usagedomain.ClientUsage{
		ID:             s.genID.Generate(),
		ClientID:       clientID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TotalDocuments: totals.TotalDocuments,
		TotalPages:     totals.TotalPages,
		TotalCostCents: totals.TotalCostCents,
		Breakdown: datatypes.JSONMap{
			"documents":  totals.TotalDocuments,
			"pages":      totals.TotalPages,
			"cost_cents": totals.TotalCostCents,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.upsert(ctx, &snapshot); err != nil {
		return usagedomain.ClientUsage{}, err
	}
	return snapshot, nil
}

// upsert refreshes the existing (client, period) row in place so the row ID
// stays stable for invoices that reference it.
func (s *Service) upsert(ctx context.Context, snapshot *usagedomain.ClientUsage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingID snowflake.ID
		err := tx.WithContext(ctx).Raw(
			`SELECT id
			 FROM client_usages
			 WHERE client_id = ? AND period_start = ? AND period_end = ?
			 LIMIT 1`,
			snapshot.ClientID,
			snapshot.PeriodStart,
			snapshot.PeriodEnd,
		).Scan(&existingID).Error
		if err != nil {
			return err
		}

		if existingID != 0 {
			snapshot.ID = existingID
			return tx.WithContext(ctx).Exec(
				`UPDATE client_usages
				 SET total_documents = ?, total_pages = ?, total_cost_cents = ?, breakdown = ?, updated_at = ?
				 WHERE id = ?`,
				snapshot.TotalDocuments,
				snapshot.TotalPages,
				snapshot.TotalCostCents,
				snapshot.Breakdown,
				snapshot.UpdatedAt,
				existingID,
			).Error
		}

		return tx.WithContext(ctx).Create(snapshot).Error
	})
}
