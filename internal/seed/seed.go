// Package seed bootstraps the rows the billing engine expects to exist.
package seed

import (
	"context"
	"errors"

	configdomain "github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/billingconfig/domain"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/internal/config"
	"gorm.io/gorm"
)

// EnsureDefaults seeds the singleton billing configuration on first startup.
// Existing rows are never touched; admin edits survive restarts.
func EnsureDefaults(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing configdomain.BillingConfiguration
		err := tx.WithContext(ctx).
			Where("id = ?", configdomain.SingletonID).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := configdomain.BillingConfiguration{
			ID:                    configdomain.SingletonID,
			MailerName:            cfg.AppName,
			MailerAddress:         cfg.SMTPFrom,
			InvoiceDateDay:        1,
			DueDateDays:           14,
			ReminderFrequencyDays: 7,
			MaxReminderCount:      3,
			AutoGenerateEnabled:   true,
			PaymentGateway:        "stripe",
			InvoicePrefix:         "INV",
			Currency:              "USD",
			TaxRateBps:            0,
			MailMaxRetries:        3,
			PaymentLinkTTLDays:    30,
			UpdatedBy:             "system",
		}
		return tx.WithContext(ctx).Create(&row).Error
	})
}
