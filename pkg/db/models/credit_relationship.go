package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditRelationship is the credit line a wholesaler extends to a retailer.
// It is the row the reservation path locks; one row per (debtor, creditor).
type CreditRelationship struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DebtorStoreID   uuid.UUID       `gorm:"column:debtor_store_id;type:uuid;not null;uniqueIndex:uq_credit_pair"`
	CreditorStoreID uuid.UUID       `gorm:"column:creditor_store_id;type:uuid;not null;uniqueIndex:uq_credit_pair"`
	CreditLimit     decimal.Decimal `gorm:"column:credit_limit;type:numeric(14,2);not null"`
	Active          bool            `gorm:"column:active;not null;default:true"`
	BlockedReason   *string         `gorm:"column:blocked_reason"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
