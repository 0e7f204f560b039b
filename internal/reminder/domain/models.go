// Package domain contains the per-invoice reminder ladder: one row per
// reminder an invoice is scheduled to receive.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusCancelled = "cancelled"
	StatusSkipped   = "skipped"
)

// InvoiceReminderSchedule is one rung of an invoice's reminder ladder.
// ReminderNumber is strictly increasing per invoice; the next rung is
// scheduled when the previous one is sent, so at most one row per invoice is
// ever in scheduled state. Settling or cancelling the invoice flips scheduled
// rows to cancelled.
type InvoiceReminderSchedule struct {
	ID             snowflake.ID  `gorm:"primaryKey"`
	InvoiceID      snowflake.ID  `gorm:"not null;uniqueIndex:ux_invoice_reminder_number"`
	ClientID       snowflake.ID  `gorm:"not null;index"`
	ReminderNumber int           `gorm:"not null;uniqueIndex:ux_invoice_reminder_number"`
	ScheduledFor   time.Time     `gorm:"not null;index"`
	SentAt         *time.Time    `gorm:""`
	MailLogID      *snowflake.ID `gorm:"index"`
	Status         string        `gorm:"type:varchar(16);not null;default:'scheduled';index"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceReminderSchedule) TableName() string { return "invoice_reminder_schedules" }

// SweepSummary reports one reminder-sweep pass.
type SweepSummary struct {
	Scanned       int
	Sent          int
	Capped        int
	MarkedOverdue int64
}

type Service interface {
	// SendDueReminders walks past-due open invoices, fires the scheduled rung
	// that has come due on each, and schedules the next rung up to the
	// configured cap. It also persists the overdue status on invoices it
	// passes.
	SendDueReminders(ctx context.Context, batchSize int) (SweepSummary, error)

	// CancelForInvoice flips the invoice's scheduled rungs to cancelled when
	// the invoice is settled or cancelled.
	CancelForInvoice(ctx context.Context, invoiceID snowflake.ID) error
}
