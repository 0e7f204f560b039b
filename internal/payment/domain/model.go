// Package domain contains payment transactions, the webhook event replay
// ledger, and the adapter contracts implemented per gateway.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TxStatusInitiated = "initiated"
	TxStatusPending   = "pending"
	TxStatusSuccess   = "success"
	TxStatusFailed    = "failed"
	TxStatusRefunded  = "refunded"
)

// PaymentTransaction is one attempt to collect an invoice. Status moves
// forward only: initiated -> pending -> success | failed, success -> refunded.
type PaymentTransaction struct {
	ID                snowflake.ID   `gorm:"primaryKey"`
	InvoiceID         snowflake.ID   `gorm:"not null;index"`
	Provider          string         `gorm:"type:varchar(32);not null"`
	ProviderPaymentID string         `gorm:"type:text"`
	AmountCents       int64          `gorm:"not null"`
	Currency          string         `gorm:"type:varchar(8);not null"`
	Status            string         `gorm:"type:varchar(16);not null;default:'initiated';index"`
	Method            string         `gorm:"type:varchar(32)"`
	ErrorMessage      string         `gorm:"type:text"`
	GatewayResponse   datatypes.JSON `gorm:"type:jsonb"`
	ClientIP          string         `gorm:"type:varchar(64)"`
	UserAgent         string         `gorm:"type:text"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentTransaction) TableName() string { return "payment_transactions" }

// EventRecord is the webhook replay ledger. UNIQUE(provider, provider_event_id)
// makes redelivered events no-ops.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_event"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_event"`
	EventType       string         `gorm:"type:text;not null"`
	InvoiceID       snowflake.ID   `gorm:"index"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is the canonical event parsed out of a provider webhook.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              string
	InvoiceID         snowflake.ID
	Amount            int64
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}

// AdapterConfig carries the per-provider secrets an adapter needs.
type AdapterConfig struct {
	WebhookSecret string
}

// PaymentAdapter verifies and parses one provider's webhook dialect.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// Gateway is the outbound API of the payment provider.
type Gateway interface {
	// CreateIntent opens a provider-side payment for the invoice and returns
	// the client secret the payment page needs.
	CreateIntent(ctx context.Context, req GatewayIntentRequest) (GatewayIntent, error)

	// Charge collects the invoice in one synchronous call.
	Charge(ctx context.Context, req GatewayChargeRequest) (GatewayCharge, error)
}

type GatewayIntentRequest struct {
	InvoiceID   snowflake.ID
	AmountCents int64
	Currency    string
}

type GatewayIntent struct {
	IntentID     string
	ClientSecret string
	Raw          []byte
}

type GatewayChargeRequest struct {
	InvoiceID   snowflake.ID
	AmountCents int64
	Currency    string
	CardToken   string
}

type GatewayCharge struct {
	ChargeID string
	Paid     bool
	Failure  string
	Raw      []byte
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

// IntentResponse is what the public payment page renders against.
type IntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// IntentRequest starts a gateway payment. ClientIP and UserAgent come off the
// public payment page request and land on the transaction row.
type IntentRequest struct {
	InvoiceID snowflake.ID
	ClientIP  string
	UserAgent string
}

// DirectChargeRequest is a synchronous card charge against an invoice.
type DirectChargeRequest struct {
	InvoiceID   snowflake.ID
	AmountCents int64
	CardToken   string
	Method      string
	ClientIP    string
	UserAgent   string
}

type Service interface {
	// CreateIntent starts a gateway payment for a payable invoice.
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)

	// SubmitDirect charges the invoice synchronously and settles it on
	// success. The submitted amount must match the invoice total exactly.
	SubmitDirect(ctx context.Context, req DirectChargeRequest) (PaymentTransaction, error)

	// ProcessEvent applies one canonical event, exactly once per
	// (provider, provider_event_id).
	ProcessEvent(ctx context.Context, event *PaymentEvent, payload []byte) error

	ListTransactions(ctx context.Context, invoiceID snowflake.ID) ([]PaymentTransaction, error)
}

// WebhookService ingests raw provider callbacks.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrInvalidConfig         = errors.New("invalid_adapter_config")
	ErrGatewayUnavailable    = errors.New("gateway_unavailable")
	ErrPaymentDeclined       = errors.New("payment_declined")
)
