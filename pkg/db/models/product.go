package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Product represents a catalog listing used to price order line items.
type Product struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU       string                `gorm:"column:sku;not null;uniqueIndex"`
	Title     string                `gorm:"column:title;not null"`
	Category  enums.ProductCategory `gorm:"column:category;type:text;not null"`
	Unit      enums.ProductUnit     `gorm:"column:unit;type:text;not null"`
	UnitPrice decimal.Decimal       `gorm:"column:unit_price;type:numeric(14,2);not null"`
	MOQ       int                   `gorm:"column:moq;not null;default:1"`
	IsActive  bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
