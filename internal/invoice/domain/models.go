// Package domain contains the invoice aggregate and its lifecycle states.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	// StatusNotGenerated marks a placeholder row whose amounts have not been
	// finalized yet. Generation promotes it to unpaid.
	StatusNotGenerated = "not_generated"
	StatusUnpaid       = "unpaid"
	StatusPaid         = "paid"
	StatusOverdue      = "overdue"
	StatusCancelled    = "cancelled"
)

// IsTerminal reports whether an invoice status can never change again.
func IsTerminal(status string) bool {
	return status == StatusPaid || status == StatusCancelled
}

// Invoice is one billing period for one client. At most one row exists per
// (client, period); regeneration updates amounts in place while unpaid and
// never touches terminal rows.
type Invoice struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	InvoiceNumber   int64        `gorm:"not null;uniqueIndex"`
	FormattedNumber string       `gorm:"type:varchar(32);not null"`
	ClientID        snowflake.ID `gorm:"not null;uniqueIndex:ux_invoice_client_period;index"`
	ClientUsageID   snowflake.ID `gorm:"not null"`
	PeriodStart     time.Time    `gorm:"not null;uniqueIndex:ux_invoice_client_period"`
	PeriodEnd       time.Time    `gorm:"not null;uniqueIndex:ux_invoice_client_period"`
	IssueDate       time.Time    `gorm:"not null"`
	DueDate         time.Time    `gorm:"not null;index"`
	Status          string       `gorm:"type:varchar(16);not null;default:'not_generated';index"`

	SubtotalCents int64  `gorm:"not null;default:0"`
	TaxCents      int64  `gorm:"not null;default:0"`
	TotalCents    int64  `gorm:"not null;default:0"`
	Currency      string `gorm:"type:varchar(8);not null;default:'USD'"`

	AmountPaidCents  int64 `gorm:"not null;default:0"`
	PaidAt           *time.Time
	PaymentMethod    string `gorm:"type:varchar(32)"`
	PaymentReference string `gorm:"type:text"`

	TotalDocuments int64 `gorm:"not null;default:0"`
	TotalPages     int64 `gorm:"not null;default:0"`

	Notes   string `gorm:"type:text"`
	PDFPath string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsOverdue is the computed predicate: unpaid (or already flagged) and past
// due. The persisted overdue status trails this and is refreshed by sweeps.
func (i Invoice) IsOverdue(now time.Time) bool {
	if i.Status != StatusUnpaid && i.Status != StatusOverdue {
		return false
	}
	return now.After(i.DueDate)
}

// Payable reports whether the invoice can still accept a payment.
func (i Invoice) Payable() bool {
	return i.Status == StatusUnpaid || i.Status == StatusOverdue
}

// FormatAmount renders integer cents as a human amount, e.g. 4250 -> "$42.50".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	value := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	switch currency {
	case "USD":
		return sign + "$" + value
	case "EUR":
		return sign + "€" + value
	case "GBP":
		return sign + "£" + value
	default:
		return fmt.Sprintf("%s%s %s", sign, currency, value)
	}
}

// FormatNumber renders the display number, e.g. prefix "INV" and 42 ->
// "INV-000042".
func FormatNumber(prefix string, number int64) string {
	return fmt.Sprintf("%s-%06d", prefix, number)
}
