// Package domain contains the read-only client projection. Client records
// are owned by the identity system; the billing engine only lists and
// resolves them.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Client struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Email     string       `gorm:"type:text;not null"`
	Active    bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }

var ErrClientNotFound = errors.New("client_not_found")

type Repository interface {
	ListActive(ctx context.Context) ([]Client, error)
	GetByID(ctx context.Context, id snowflake.ID) (Client, error)
}
