// Package domain contains the outbound mail log: every invoice, reminder and
// receipt email is recorded here with its retry state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	EmailTypeInvoiceGenerated = "invoice_generated"
	EmailTypePaymentReminder  = "payment_reminder"
	EmailTypePaymentReceived  = "payment_received"
	EmailTypeInvoiceOverdue   = "invoice_overdue"
	EmailTypeInvoiceCancelled = "invoice_cancelled"
)

const (
	StatusPending      = "pending"
	StatusSuccess      = "success"
	StatusRetryPending = "retry_pending"
	StatusFailed       = "failed"
	StatusCancelled    = "cancelled"
)

// MailLog is one outbound email. A retry_pending row is waiting for the sweep
// to pick it up at NextRetryAt; once RetryCount reaches MaxRetries the row is
// terminal failed and only an explicit admin retry can touch it again.
type MailLog struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	InvoiceID      snowflake.ID `gorm:"index"`
	ClientID       snowflake.ID `gorm:"not null;index"`
	EmailType      string       `gorm:"type:varchar(32);not null"`
	Recipient      string       `gorm:"type:text;not null"`
	Subject        string       `gorm:"type:text;not null"`
	Body           string       `gorm:"type:text;not null"`
	AttachmentPath string       `gorm:"type:text"`
	Status         string       `gorm:"type:varchar(16);not null;default:'pending';index"`
	RetryCount     int          `gorm:"not null;default:0"`
	MaxRetries     int          `gorm:"not null;default:3"`
	NextRetryAt    *time.Time   `gorm:"index"`
	LastError      string       `gorm:"type:text"`
	SentAt         *time.Time
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MailLog) TableName() string { return "mail_logs" }

// Exhausted reports whether the row has burned through its retry budget.
func (m MailLog) Exhausted() bool {
	return m.Status == StatusFailed && m.RetryCount >= m.MaxRetries
}
