package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// AdminAuditLog is the forensic append-only trail. Denied attempts are
// recorded with the same fidelity as approved ones.
type AdminAuditLog struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action     enums.AuditAction `gorm:"column:action;type:text;not null"`
	ActorID    uuid.UUID         `gorm:"column:actor_id;type:uuid;not null"`
	EntityType string            `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID         `gorm:"column:entity_id;type:uuid;not null;index"`
	Outcome    string            `gorm:"column:outcome;not null"`
	Details    json.RawMessage   `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}
