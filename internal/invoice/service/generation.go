package service

import (
	"context"
	"time"

	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	clientdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/client/domain"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type generationOutcome int

const (
	outcomeGenerated generationOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (s *Service) GenerateMonthlyInvoices(ctx context.Context, runDate time.Time) (invoicedomain.GenerationSummary, error) {
	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return invoicedomain.GenerationSummary{}, err
	}

	periodStart, periodEnd := previousMonth(runDate)
	clients, err := s.clients.ListActive(ctx)
	if err != nil {
		return invoicedomain.GenerationSummary{}, err
	}

	summary := invoicedomain.GenerationSummary{}
	for _, client := range clients {
		outcome, err := s.generateForClient(ctx, cfg, client, periodStart, periodEnd, runDate)
		if err != nil {
			// One bad client must not sink the whole run.
			summary.Failed++
			s.log.Error("invoice generation failed for client",
				zap.Int64("client_id", int64(client.ID)),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case outcomeGenerated:
			summary.Generated++
		case outcomeUpdated:
			summary.Updated++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	s.auditSvc.AuditLog(ctx, "invoice.generation_run", "invoice", "batch", map[string]any{
		"period_start": periodStart.Format("2006-01-02"),
		"period_end":   periodEnd.Format("2006-01-02"),
		"generated":    summary.Generated,
		"updated":      summary.Updated,
		"skipped":      summary.Skipped,
		"failed":       summary.Failed,
	})
	return summary, nil
}

func (s *Service) generateForClient(
	ctx context.Context,
	cfg configdomain.BillingConfiguration,
	client clientdomain.Client,
	periodStart, periodEnd, runDate time.Time,
) (generationOutcome, error) {
	snapshot, err := s.usage.Aggregate(ctx, client.ID, periodStart, periodEnd)
	if err != nil {
		return outcomeSkipped, err
	}
	if snapshot.TotalDocuments == 0 && snapshot.TotalCostCents == 0 {
		return outcomeSkipped, nil
	}

	subtotal := snapshot.TotalCostCents
	tax := subtotal * int64(cfg.TaxRateBps) / 10000
	total := subtotal + tax

	issueDate := dateOnly(runDate)
	dueDate := issueDate.AddDate(0, 0, cfg.DueDateDays)
	now := s.clock.Now()

	inv := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		ClientID:       client.ID,
		ClientUsageID:  snapshot.ID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		Status:         invoicedomain.StatusUnpaid,
		SubtotalCents:  subtotal,
		TaxCents:       tax,
		TotalCents:     total,
		Currency:       cfg.Currency,
		TotalDocuments: snapshot.TotalDocuments,
		TotalPages:     snapshot.TotalPages,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	outcome := outcomeGenerated
	err = retryOnNumberConflict(func() error {
		outcome = outcomeGenerated
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var nextNumber int64
			if err := tx.Raw(
				`SELECT COALESCE(MAX(invoice_number), 0) + 1 FROM invoices`,
			).Scan(&nextNumber).Error; err != nil {
				return err
			}
			inv.InvoiceNumber = nextNumber
			inv.FormattedNumber = invoicedomain.FormatNumber(cfg.InvoicePrefix, nextNumber)

			res := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "client_id"}, {Name: "period_start"}, {Name: "period_end"},
				},
				DoNothing: true,
			}).Create(&inv)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}

			// Row already exists for this (client, period): refresh amounts while
			// the invoice is still open, never touch terminal rows.
			var existing invoicedomain.Invoice
			if err := tx.
				Where("client_id = ? AND period_start = ? AND period_end = ?",
					client.ID, periodStart, periodEnd).
				First(&existing).Error; err != nil {
				return err
			}
			if invoicedomain.IsTerminal(existing.Status) {
				outcome = outcomeSkipped
				return nil
			}

			upd := tx.Exec(
				`UPDATE invoices
				 SET client_usage_id = ?, subtotal_cents = ?, tax_cents = ?, total_cents = ?,
				     total_documents = ?, total_pages = ?, status = ?, updated_at = ?
				 WHERE id = ? AND status IN (?, ?, ?)`,
				snapshot.ID, subtotal, tax, total,
				snapshot.TotalDocuments, snapshot.TotalPages,
				invoicedomain.StatusUnpaid, now,
				existing.ID,
				invoicedomain.StatusNotGenerated,
				invoicedomain.StatusUnpaid,
				invoicedomain.StatusOverdue,
			)
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				outcome = outcomeSkipped
				return nil
			}

			inv = existing
			inv.ClientUsageID = snapshot.ID
			inv.SubtotalCents = subtotal
			inv.TaxCents = tax
			inv.TotalCents = total
			inv.TotalDocuments = snapshot.TotalDocuments
			inv.TotalPages = snapshot.TotalPages
			inv.Status = invoicedomain.StatusUnpaid
			inv.UpdatedAt = now
			outcome = outcomeUpdated
			return nil
		})
	})
	if err != nil {
		return outcomeSkipped, err
	}
	if outcome == outcomeSkipped {
		return outcomeSkipped, nil
	}

	if err := s.deliverInvoice(ctx, cfg, client, &inv, outcome == outcomeGenerated); err != nil {
		// The invoice row is durable; delivery retries are owned by the
		// mail sweep, so log and move on.
		s.log.Warn("invoice delivery incomplete",
			zap.Int64("invoice_id", int64(inv.ID)),
			zap.Error(err),
		)
	}
	return outcome, nil
}

const numberConflictAttempts = 3

// retryOnNumberConflict re-runs fn when it fails on a duplicate key. A
// concurrent generation run can take the invoice number between the MAX read
// and the insert; re-running reads the sequence past the taken number. The
// whole transaction restarts because a failed insert poisons it on postgres.
func retryOnNumberConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < numberConflictAttempts; attempt++ {
		err = fn()
		if err == nil || !db.IsDuplicateKeyErr(err) {
			return err
		}
	}
	return err
}

// previousMonth returns the inclusive date bounds of the calendar month
// before t, at midnight UTC.
func previousMonth(t time.Time) (time.Time, time.Time) {
	firstOfCurrent := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfCurrent.AddDate(0, -1, 0)
	end := firstOfCurrent.AddDate(0, 0, -1)
	return start, end
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
