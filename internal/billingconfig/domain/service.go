package domain

import "context"

type UpdateRequest struct {
	MailerName            *string `json:"mailer_name"`
	MailerAddress         *string `json:"mailer_address"`
	InvoiceDateDay        *int    `json:"invoice_date_day"`
	DueDateDays           *int    `json:"due_date_days"`
	ReminderFrequencyDays *int    `json:"reminder_frequency_days"`
	MaxReminderCount      *int    `json:"max_reminder_count"`
	AutoGenerateEnabled   *bool   `json:"auto_generate_enabled"`
	PaymentGateway        *string `json:"payment_gateway"`
	InvoicePrefix         *string `json:"invoice_prefix"`
	Currency              *string `json:"currency"`
	TaxRateBps            *int    `json:"tax_rate_bps"`
	MailMaxRetries        *int    `json:"mail_max_retries"`
	PaymentLinkTTLDays    *int    `json:"payment_link_ttl_days"`
}

type Service interface {
	// Get loads the singleton configuration row.
	Get(ctx context.Context) (BillingConfiguration, error)
	// Update applies a partial update. Admin only.
	Update(ctx context.Context, req UpdateRequest) (BillingConfiguration, error)
}
