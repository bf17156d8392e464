package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/ordena-ai/ordena-backend/pkg/db/types"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// VendorRouting is the broadcast record for one order. WinnerStoreID is set
// by a single conditional update; whoever flips the status first wins.
type VendorRouting struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	RetailerStoreID uuid.UUID             `gorm:"column:retailer_store_id;type:uuid;not null"`
	Category        enums.ProductCategory `gorm:"column:category;type:text;not null"`
	Status          enums.RoutingStatus   `gorm:"column:status;type:vendor_routing_status;not null;default:'pending_responses'"`
	EligibleVendors dbtypes.UUIDArray     `gorm:"column:eligible_vendors;type:uuid[];not null"`
	WinnerStoreID   *uuid.UUID            `gorm:"column:winner_store_id;type:uuid"`
	AcceptedAt      *time.Time            `gorm:"column:accepted_at"`
	Responses       []VendorResponse      `gorm:"foreignKey:RoutingID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
