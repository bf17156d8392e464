package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// OrderEvent is the append-only audit record of a state transition. The
// fulfillment precondition reads this table, never in-memory state.
type OrderEvent struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus   enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	Reason     *string           `gorm:"column:reason"`
	Metadata   json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
