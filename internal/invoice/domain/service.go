package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/pagination"
)

// GenerationSummary reports one generation pass over the active client list.
type GenerationSummary struct {
	Generated int
	Updated   int
	Skipped   int
	Failed    int
}

// SettleRequest records a completed payment against an invoice.
type SettleRequest struct {
	InvoiceID   snowflake.ID
	AmountCents int64
	Method      string
	Reference   string
	PaidAt      time.Time
}

type ListFilter struct {
	ClientID    snowflake.ID
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Page        pagination.PageInfo
}

// RevenueMonth is one month of collected revenue in a RevenueReport.
type RevenueMonth struct {
	Month        string `json:"month"`
	PaidInvoices int64  `json:"paid_invoices"`
	RevenueCents int64  `json:"revenue_cents"`
}

type RevenueReport struct {
	Year       int            `json:"year"`
	Currency   string         `json:"currency"`
	TotalCents int64          `json:"total_cents"`
	Months     []RevenueMonth `json:"months"`
}

// SummaryReport is the point-in-time invoice position across all clients.
type SummaryReport struct {
	ByStatus         map[string]int64 `json:"by_status"`
	OutstandingCents int64            `json:"outstanding_cents"`
	OverdueCents     int64            `json:"overdue_cents"`
	CollectedCents   int64            `json:"collected_cents"`
}

type Service interface {
	// GenerateMonthlyInvoices invoices the previous calendar month for every
	// active client. Re-running is idempotent: existing unpaid rows get their
	// amounts refreshed, terminal rows are never touched.
	GenerateMonthlyInvoices(ctx context.Context, runDate time.Time) (GenerationSummary, error)

	// Settle marks the invoice paid and runs the paid cascade: reminders
	// cancelled, pending delivery retries voided, receipt sent.
	Settle(ctx context.Context, req SettleRequest) (Invoice, error)

	// MarkPaid is the admin path onto Settle for out-of-band payments.
	MarkPaid(ctx context.Context, id snowflake.ID, reference string) (Invoice, error)

	// Cancel voids an unpaid invoice. Paid invoices cannot be cancelled.
	Cancel(ctx context.Context, id snowflake.ID, reason string) (Invoice, error)

	UpdateNotes(ctx context.Context, id snowflake.ID, notes string) (Invoice, error)

	// SendInvoiceEmail re-sends the invoice email with the PDF attached.
	SendInvoiceEmail(ctx context.Context, id snowflake.ID) error

	// RefreshOverdue persists the overdue status on unpaid invoices past due.
	RefreshOverdue(ctx context.Context) (int64, error)

	List(ctx context.Context, filter ListFilter) ([]Invoice, int64, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)

	RevenueReport(ctx context.Context, year int) (RevenueReport, error)
	SummaryReport(ctx context.Context) (SummaryReport, error)
}

// ReminderCanceller voids the reminder schedule when an invoice leaves the
// unpaid states. Implemented by the reminder service; declared here so the
// dependency points downward.
type ReminderCanceller interface {
	CancelForInvoice(ctx context.Context, invoiceID snowflake.ID) error
}

var (
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrAlreadyPaid      = errors.New("invoice_already_paid")
	ErrInvoiceCancelled = errors.New("invoice_cancelled")
	ErrNotPayable       = errors.New("invoice_not_payable")
	ErrAmountMismatch   = errors.New("payment_amount_mismatch")
)
