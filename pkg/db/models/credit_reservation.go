package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// CreditReservation is a temporary hold against a credit relationship. At
// most one ACTIVE reservation may exist per order.
type CreditReservation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RelationshipID uuid.UUID               `gorm:"column:relationship_id;type:uuid;not null;index"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	Status         enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'active'"`
	ReleaseReason  *string                 `gorm:"column:release_reason"`
	ReleasedAt     *time.Time              `gorm:"column:released_at"`
	ConvertedAt    *time.Time              `gorm:"column:converted_at"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
