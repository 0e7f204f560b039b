package service

import (
	"context"
	"errors"
	"testing"
	"time"

	invoicedomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/invoice/domain"
	maildomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/maildelivery/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMonthlyInvoices_FirstRun(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_first?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	f.seedUsage(t, client.ID, 3, 10, 1500)
	f.seedUsage(t, client.ID, 10, 4, 750)
	f.seedUsage(t, client.ID, 20, 20, 2000)

	runDate := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	summary, err := f.svc.GenerateMonthlyInvoices(ctx, runDate)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Generated)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Failed)

	invoices, total, err := f.svc.List(ctx, invoicedomain.ListFilter{ClientID: client.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)

	inv := invoices[0]
	assert.Equal(t, int64(1), inv.InvoiceNumber)
	assert.Equal(t, "INV-000001", inv.FormattedNumber)
	assert.Equal(t, invoicedomain.StatusUnpaid, inv.Status)
	assert.Equal(t, int64(4250), inv.SubtotalCents)
	assert.Equal(t, int64(0), inv.TaxCents)
	assert.Equal(t, int64(4250), inv.TotalCents)
	assert.Equal(t, "$42.50", invoicedomain.FormatAmount(inv.TotalCents, inv.Currency))
	assert.Equal(t, int64(3), inv.TotalDocuments)
	assert.Equal(t, int64(34), inv.TotalPages)
	assert.True(t, inv.PeriodStart.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, inv.PeriodEnd.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.True(t, inv.DueDate.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))

	// Newly generated invoices get their delivery email queued.
	delivered := f.mail.byType(maildomain.EmailTypeInvoiceGenerated)
	assert.Len(t, delivered, 1)
	assert.Equal(t, client.Email, delivered[0].Recipient)
}

func TestGenerateMonthlyInvoices_Idempotent(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_idem?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	f.seedUsage(t, client.ID, 5, 8, 4250)

	runDate := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	first, err := f.svc.GenerateMonthlyInvoices(ctx, runDate)
	assert.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	// Late ledger row, then a re-run: the same invoice row is refreshed.
	f.seedUsage(t, client.ID, 27, 2, 500)
	second, err := f.svc.GenerateMonthlyInvoices(ctx, runDate)
	assert.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Equal(t, 1, second.Updated)

	invoices, total, err := f.svc.List(ctx, invoicedomain.ListFilter{ClientID: client.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total, "re-running must never duplicate the invoice")
	assert.Equal(t, int64(4750), invoices[0].TotalCents)
	assert.Equal(t, int64(1), invoices[0].InvoiceNumber)

	// Only the first run sends the invoice email.
	assert.Len(t, f.mail.byType(maildomain.EmailTypeInvoiceGenerated), 1)
}

func TestGenerateMonthlyInvoices_PaidInvoiceNeverTouched(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_paid?mode=memory&cache=shared")
	ctx := context.Background()

	client := f.seedClient(t, "acme")
	f.seedUsage(t, client.ID, 5, 8, 4250)

	runDate := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	_, err := f.svc.GenerateMonthlyInvoices(ctx, runDate)
	assert.NoError(t, err)

	invoices, _, err := f.svc.List(ctx, invoicedomain.ListFilter{ClientID: client.ID})
	assert.NoError(t, err)
	paid, err := f.svc.MarkPaid(ctx, invoices[0].ID, "wire-001")
	assert.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, paid.Status)

	f.seedUsage(t, client.ID, 27, 2, 500)
	summary, err := f.svc.GenerateMonthlyInvoices(ctx, runDate)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)

	refreshed, err := f.svc.GetByID(ctx, invoices[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, refreshed.Status)
	assert.Equal(t, int64(4250), refreshed.TotalCents, "paid amounts are frozen")
}

func TestGenerateMonthlyInvoices_SkipsZeroUsage(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_zero?mode=memory&cache=shared")
	ctx := context.Background()

	f.seedClient(t, "idle")

	summary, err := f.svc.GenerateMonthlyInvoices(ctx, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Zero(t, summary.Generated)
	assert.Equal(t, 1, summary.Skipped)
}

func TestGenerateMonthlyInvoices_TaxApplied(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_tax?mode=memory&cache=shared")
	ctx := context.Background()

	f.cfg.cfg.TaxRateBps = 1000 // 10%

	client := f.seedClient(t, "acme")
	f.seedUsage(t, client.ID, 5, 8, 4250)

	_, err := f.svc.GenerateMonthlyInvoices(ctx, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	assert.NoError(t, err)

	invoices, _, err := f.svc.List(ctx, invoicedomain.ListFilter{ClientID: client.ID})
	assert.NoError(t, err)
	assert.Equal(t, int64(4250), invoices[0].SubtotalCents)
	assert.Equal(t, int64(425), invoices[0].TaxCents)
	assert.Equal(t, int64(4675), invoices[0].TotalCents)
}

func TestGenerateMonthlyInvoices_NumbersAreSequential(t *testing.T) {
	f := setupInvoiceTest(t, "file:invgen_seq?mode=memory&cache=shared")
	ctx := context.Background()

	a := f.seedClient(t, "alpha")
	b := f.seedClient(t, "beta")
	f.seedUsage(t, a.ID, 5, 8, 1000)
	f.seedUsage(t, b.ID, 6, 3, 2000)

	summary, err := f.svc.GenerateMonthlyInvoices(ctx, time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, 2, summary.Generated)

	invoices, _, err := f.svc.List(ctx, invoicedomain.ListFilter{})
	assert.NoError(t, err)
	assert.Len(t, invoices, 2)
	// List sorts by invoice_number DESC.
	assert.Equal(t, int64(2), invoices[0].InvoiceNumber)
	assert.Equal(t, int64(1), invoices[1].InvoiceNumber)
}

func TestRetryOnNumberConflict(t *testing.T) {
	numberTaken := errors.New("UNIQUE constraint failed: invoices.invoice_number")

	// A concurrent run taking the number triggers a re-read and a fresh insert.
	calls := 0
	err := retryOnNumberConflict(func() error {
		calls++
		if calls < 3 {
			return numberTaken
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	// Anything else surfaces immediately.
	calls = 0
	dbDown := errors.New("connection refused")
	err = retryOnNumberConflict(func() error {
		calls++
		return dbDown
	})
	assert.ErrorIs(t, err, dbDown)
	assert.Equal(t, 1, calls)

	// A conflict on every attempt gives up with the error.
	calls = 0
	err = retryOnNumberConflict(func() error {
		calls++
		return numberTaken
	})
	assert.ErrorIs(t, err, numberTaken)
	assert.Equal(t, numberConflictAttempts, calls)
}
