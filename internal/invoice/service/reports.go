package service

import (
	"context"
	"time"

	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/authorization"
	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
)

func (s *Service) RevenueReport(ctx context.Context, year int) (invoicedomain.RevenueReport, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectReport, authorization.ActionRead); err != nil {
		return invoicedomain.RevenueReport{}, err
	}

	cfg, err := s.billingCfg.Get(ctx)
	if err != nil {
		return invoicedomain.RevenueReport{}, err
	}

	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	var paid []invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Select("paid_at", "amount_paid_cents").
		Where("status = ? AND paid_at >= ? AND paid_at < ?",
			invoicedomain.StatusPaid, yearStart, yearEnd).
		Find(&paid).Error
	if err != nil {
		return invoicedomain.RevenueReport{}, err
	}

	// Bucketed in Go so the query stays portable across dialects.
	report := invoicedomain.RevenueReport{
		Year:     year,
		Currency: cfg.Currency,
		Months:   make([]invoicedomain.RevenueMonth, 12),
	}
	for i := range report.Months {
		report.Months[i].Month = time.Month(i + 1).String()
	}
	for _, inv := range paid {
		if inv.PaidAt == nil {
			continue
		}
		idx := int(inv.PaidAt.UTC().Month()) - 1
		report.Months[idx].PaidInvoices++
		report.Months[idx].RevenueCents += inv.AmountPaidCents
		report.TotalCents += inv.AmountPaidCents
	}
	return report, nil
}

func (s *Service) SummaryReport(ctx context.Context) (invoicedomain.SummaryReport, error) {
	if err := s.authzSvc.Require(ctx, authorization.ObjectReport, authorization.ActionRead); err != nil {
		return invoicedomain.SummaryReport{}, err
	}

	type statusRow struct {
		Status     string
		Count      int64
		TotalCents int64
		PaidCents  int64
	}
	var rows []statusRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT status,
		        COUNT(*) AS count,
		        COALESCE(SUM(total_cents), 0) AS total_cents,
		        COALESCE(SUM(amount_paid_cents), 0) AS paid_cents
		 FROM invoices
		 GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return invoicedomain.SummaryReport{}, err
	}

	report := invoicedomain.SummaryReport{ByStatus: make(map[string]int64)}
	for _, row := range rows {
		report.ByStatus[row.Status] = row.Count
		switch row.Status {
		case invoicedomain.StatusUnpaid:
			report.OutstandingCents += row.TotalCents
		case invoicedomain.StatusOverdue:
			report.OutstandingCents += row.TotalCents
			report.OverdueCents += row.TotalCents
		case invoicedomain.StatusPaid:
			report.CollectedCents += row.PaidCents
		}
	}
	return report, nil
}
