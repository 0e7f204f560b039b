// Package domain contains the usage ledger read contract and the per-period
// usage snapshots consumed by invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DocumentUsage is one row of the document-processing ledger: a single
// processed document with its page count and computed cost. The ledger is
// written by the extraction pipeline; billing only reads it.
type DocumentUsage struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ClientID     snowflake.ID `gorm:"not null;index"`
	DocumentName string       `gorm:"type:text;not null"`
	PageCount    int64        `gorm:"not null"`
	CostCents    int64        `gorm:"not null"`
	ProcessedAt  time.Time    `gorm:"not null;index"`
}

// TableName sets the database table name.
func (DocumentUsage) TableName() string { return "document_usages" }

// ClientUsage is the aggregated snapshot for one client and billing period.
// Recomputed (upserted) by the aggregator only; unique per (client, range).
type ClientUsage struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	ClientID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_client_usage_period"`
	PeriodStart    time.Time         `gorm:"not null;uniqueIndex:ux_client_usage_period"`
	PeriodEnd      time.Time         `gorm:"not null;uniqueIndex:ux_client_usage_period"`
	TotalDocuments int64             `gorm:"not null;default:0"`
	TotalPages     int64             `gorm:"not null;default:0"`
	TotalCostCents int64             `gorm:"not null;default:0"`
	Breakdown      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ClientUsage) TableName() string { return "client_usages" }
