package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Order represents a retailer's wholesale order moving through the credit
// lifecycle. WholesalerStoreID stays nil until a vendor wins the routing.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       int64                 `gorm:"column:order_number;not null"`
	RetailerStoreID   uuid.UUID             `gorm:"column:retailer_store_id;type:uuid;not null"`
	WholesalerStoreID *uuid.UUID            `gorm:"column:wholesaler_store_id;type:uuid"`
	Category          enums.ProductCategory `gorm:"column:category;type:text;not null"`
	Currency          enums.Currency        `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status            enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'created'"`
	TotalAmount       decimal.Decimal       `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Notes             *string               `gorm:"column:notes"`
	CreditReservedAt  *time.Time            `gorm:"column:credit_reserved_at"`
	VendorNotifiedAt  *time.Time            `gorm:"column:vendor_notified_at"`
	VendorDecidedAt   *time.Time            `gorm:"column:vendor_decided_at"`
	FulfilledAt       *time.Time            `gorm:"column:fulfilled_at"`
	CancelledAt       *time.Time            `gorm:"column:cancelled_at"`
	FailedAt          *time.Time            `gorm:"column:failed_at"`
	Items             []OrderLineItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
