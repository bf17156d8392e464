package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// OrderItemInput is one requested product line before pricing.
type OrderItemInput struct {
	ProductID uuid.UUID
	Qty       int
}

// CreateOrderInput carries everything needed to open an order in CREATED.
// WholesalerStoreID is optional: direct orders name their supplier up front,
// routed orders leave it nil until a vendor wins the broadcast.
type CreateOrderInput struct {
	RetailerStoreID   uuid.UUID
	WholesalerStoreID *uuid.UUID
	Category          enums.ProductCategory
	Currency          enums.Currency
	Items             []OrderItemInput
	Notes             *string
	ActorID           uuid.UUID
}

// TransitionInput requests one state-machine step.
type TransitionInput struct {
	OrderID uuid.UUID
	To      enums.OrderStatus
	ActorID uuid.UUID
	Reason  *string
	// Metadata is stored verbatim on the OrderEvent row.
	Metadata json.RawMessage
	// WholesalerStoreID binds the routing winner on VENDOR_ACCEPTED.
	WholesalerStoreID *uuid.UUID
}

// OrderState answers "where is this order and what can happen next".
type OrderState struct {
	OrderID         uuid.UUID           `json:"order_id"`
	Status          enums.OrderStatus   `json:"status"`
	ValidNextStates []enums.OrderStatus `json:"valid_next_states"`
}

// OrderFilters describe the inputs supported by the order list queries.
type OrderFilters struct {
	Status   *enums.OrderStatus
	Category *enums.ProductCategory
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID                uuid.UUID             `json:"id"`
	OrderNumber       int64                 `json:"order_number"`
	RetailerStoreID   uuid.UUID             `json:"retailer_store_id"`
	WholesalerStoreID *uuid.UUID            `json:"wholesaler_store_id,omitempty"`
	Category          enums.ProductCategory `json:"category"`
	Status            enums.OrderStatus     `json:"status"`
	Currency          enums.Currency        `json:"currency"`
	TotalAmount       decimal.Decimal       `json:"total_amount"`
	TotalItems        int                   `json:"total_items"`
	CreatedAt         time.Time             `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
