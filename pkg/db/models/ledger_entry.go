package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// LedgerEntry records an immutable credit-ledger row between a debtor
// (retailer) and a creditor (wholesaler). Rows are never updated or
// deleted; corrections land as new adjustment rows.
type LedgerEntry struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DebtorStoreID   uuid.UUID             `gorm:"column:debtor_store_id;type:uuid;not null;index:idx_ledger_pair"`
	CreditorStoreID uuid.UUID             `gorm:"column:creditor_store_id;type:uuid;not null;index:idx_ledger_pair"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	Type            enums.LedgerEntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Reference       *string               `gorm:"column:reference"`
	Metadata        json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
