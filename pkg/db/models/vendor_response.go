package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// VendorResponse is one vendor's answer to a routing broadcast. The unique
// index on (routing, vendor) makes a second answer a constraint violation.
type VendorResponse struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RoutingID          uuid.UUID                `gorm:"column:routing_id;type:uuid;not null;uniqueIndex:uq_routing_vendor"`
	VendorStoreID      uuid.UUID                `gorm:"column:vendor_store_id;type:uuid;not null;uniqueIndex:uq_routing_vendor"`
	Response           enums.VendorResponseType `gorm:"column:response;type:vendor_response_type;not null"`
	Note               *string                  `gorm:"column:note"`
	CancellationSentAt *time.Time               `gorm:"column:cancellation_sent_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
}
