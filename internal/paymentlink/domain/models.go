// Package domain contains the tokenized public payment links that let a
// client open and settle an invoice without authenticating.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentLink maps an opaque token to an invoice. Tokens are single-invoice
// and expire; an invoice gets a fresh link when its previous one lapses.
type PaymentLink struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;index"`
	Token     string       `gorm:"type:varchar(64);not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentLink) TableName() string { return "payment_links" }

func (l PaymentLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

type Service interface {
	// EnsureForInvoice returns the invoice's unexpired link, minting one when
	// none exists. Safe to call repeatedly.
	EnsureForInvoice(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (PaymentLink, error)

	// Resolve looks a token up for the public payment page.
	Resolve(ctx context.Context, token string) (PaymentLink, error)

	// PublicURL renders the absolute /pay URL for a link token.
	PublicURL(token string) string
}

var (
	ErrLinkNotFound = errors.New("payment_link_not_found")
	ErrLinkExpired  = errors.New("payment_link_expired")
)
