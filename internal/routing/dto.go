package routing

import (
	"time"

	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// RouteOrderInput opens the vendor broadcast for one order.
type RouteOrderInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}

// VendorResponseInput is one vendor's answer to a broadcast.
type VendorResponseInput struct {
	OrderID       uuid.UUID
	VendorStoreID uuid.UUID
	Response      enums.VendorResponseType
	Note          *string
	ActorID       uuid.UUID
}

// ReasonLostRace marks an acceptance that arrived after another vendor won.
const ReasonLostRace = "LOST_RACE"

// AcceptDecision reports how an acceptance attempt resolved. Accepted stays
// true on a repeated accept from the winner, so retries are idempotent.
type AcceptDecision struct {
	RoutingID     uuid.UUID  `json:"routing_id"`
	OrderID       uuid.UUID  `json:"order_id"`
	Accepted      bool       `json:"accepted"`
	AlreadyWinner bool       `json:"already_winner,omitempty"`
	WinnerStoreID *uuid.UUID `json:"winner_store_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// ResponseView is one vendor response in the routing status.
type ResponseView struct {
	VendorStoreID uuid.UUID                `json:"vendor_store_id"`
	Response      enums.VendorResponseType `json:"response"`
	Note          *string                  `json:"note,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// RoutingView is the full broadcast status for one order.
type RoutingView struct {
	RoutingID       uuid.UUID           `json:"routing_id"`
	OrderID         uuid.UUID           `json:"order_id"`
	Status          enums.RoutingStatus `json:"status"`
	EligibleVendors []uuid.UUID         `json:"eligible_vendors"`
	WinnerStoreID   *uuid.UUID          `json:"winner_store_id,omitempty"`
	AcceptedAt      *time.Time          `json:"accepted_at,omitempty"`
	Responses       []ResponseView      `json:"responses"`
	CreatedAt       time.Time           `json:"created_at"`
}
