// Package domain contains the billing configuration singleton.
package domain

import (
	"errors"
	"time"
)

// SingletonID is the fixed primary key of the only billing configuration row.
const SingletonID = 1

// BillingConfiguration controls invoice cadence, reminders and numbering.
// Exactly one row exists; it is seeded by migrations and mutated only by
// admin actors.
type BillingConfiguration struct {
	ID                    int64  `gorm:"primaryKey"`
	MailerName            string `gorm:"type:text;not null"`
	MailerAddress         string `gorm:"type:text;not null"`
	InvoiceDateDay        int    `gorm:"not null;default:1"`
	DueDateDays           int    `gorm:"not null;default:14"`
	ReminderFrequencyDays int    `gorm:"not null;default:7"`
	MaxReminderCount      int    `gorm:"not null;default:3"`
	AutoGenerateEnabled   bool   `gorm:"not null;default:true"`
	PaymentGateway        string `gorm:"type:text;not null;default:'stripe'"`
	InvoicePrefix         string `gorm:"type:text;not null;default:'INV'"`
	Currency              string `gorm:"type:text;not null;default:'USD'"`
	TaxRateBps            int    `gorm:"not null;default:0"`
	MailMaxRetries        int    `gorm:"not null;default:3"`
	PaymentLinkTTLDays    int    `gorm:"not null;default:30"`
	UpdatedBy             string `gorm:"type:text"`
	UpdatedAt             time.Time
}

// TableName sets the database table name.
func (BillingConfiguration) TableName() string { return "billing_configurations" }

var (
	ErrNotFound      = errors.New("billing_configuration_not_found")
	ErrInvalidConfig = errors.New("invalid_billing_configuration")
	ErrForbidden     = errors.New("forbidden")
)

// Validate rejects values that would break invoice or reminder scheduling.
func (c BillingConfiguration) Validate() error {
	if c.InvoiceDateDay < 1 || c.InvoiceDateDay > 28 {
		return ErrInvalidConfig
	}
	if c.DueDateDays < 0 {
		return ErrInvalidConfig
	}
	if c.ReminderFrequencyDays < 1 {
		return ErrInvalidConfig
	}
	if c.MaxReminderCount < 0 {
		return ErrInvalidConfig
	}
	if c.TaxRateBps < 0 || c.TaxRateBps > 10000 {
		return ErrInvalidConfig
	}
	if len(c.Currency) != 3 {
		return ErrInvalidConfig
	}
	if c.InvoicePrefix == "" {
		return ErrInvalidConfig
	}
	if c.MailMaxRetries < 0 {
		return ErrInvalidConfig
	}
	if c.PaymentLinkTTLDays < 1 {
		return ErrInvalidConfig
	}
	return nil
}
