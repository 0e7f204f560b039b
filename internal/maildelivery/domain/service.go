package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/sdasgarali/ai-doc-processor-latest-sub002/pkg/db/pagination"
)

// EnqueueRequest carries a fully rendered email. The caller renders the body
// up front so retries re-send the exact content that was first attempted.
type EnqueueRequest struct {
	InvoiceID      snowflake.ID
	ClientID       snowflake.ID
	EmailType      string
	Recipient      string
	Subject        string
	Body           string
	AttachmentPath string
	MaxRetries     int
}

type ListFilter struct {
	InvoiceID snowflake.ID
	Status    string
	EmailType string
	Page      pagination.PageInfo
}

// SweepSummary reports one retry-sweep pass.
type SweepSummary struct {
	Attempted int
	Sent      int
	Failed    int
	Exhausted int
}

type Service interface {
	// Enqueue records the email and attempts delivery once, inline. A send
	// failure is not an error; the row stays behind for the retry sweep.
	Enqueue(ctx context.Context, req EnqueueRequest) (MailLog, error)

	// RetrySweep re-sends retryable failed rows whose backoff has elapsed.
	RetrySweep(ctx context.Context, batchSize int) (SweepSummary, error)

	// Retry re-attempts a single row on admin request, even when terminal.
	Retry(ctx context.Context, id snowflake.ID) (MailLog, error)

	// CancelPending voids unsent rows for an invoice that no longer needs
	// delivery (paid or cancelled).
	CancelPending(ctx context.Context, invoiceID snowflake.ID) error

	List(ctx context.Context, filter ListFilter) ([]MailLog, int64, error)
	GetByID(ctx context.Context, id snowflake.ID) (MailLog, error)
}

var (
	ErrMailLogNotFound = errors.New("mail_log_not_found")
	ErrAlreadySent     = errors.New("mail_already_sent")
	ErrInvalidRequest  = errors.New("invalid_mail_request")
)
