package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// OrderLineItem captures the priced snapshot of each item within an order.
type OrderLineItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Name      string            `gorm:"column:name;not null"`
	Unit      enums.ProductUnit `gorm:"column:unit;type:text;not null"`
	UnitPrice decimal.Decimal   `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Qty       int               `gorm:"column:qty;not null"`
	Total     decimal.Decimal   `gorm:"column:total;type:numeric(14,2);not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
