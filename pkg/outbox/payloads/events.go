package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order entering the lifecycle.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID             `json:"order_id"`
	OrderNumber     int64                 `json:"order_number"`
	RetailerStoreID uuid.UUID             `json:"retailer_store_id"`
	Category        enums.ProductCategory `json:"category"`
	Currency        enums.Currency        `json:"currency"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
}

// OrderStateChangedEvent is emitted on every committed transition.
type OrderStateChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ActorID    uuid.UUID         `json:"actor_id"`
	Reason     string            `json:"reason,omitempty"`
}

// CreditReservedEvent reports a new hold against a credit line.
type CreditReservedEvent struct {
	ReservationID   uuid.UUID       `json:"reservation_id"`
	OrderID         uuid.UUID       `json:"order_id"`
	DebtorStoreID   uuid.UUID       `json:"debtor_store_id"`
	CreditorStoreID uuid.UUID       `json:"creditor_store_id"`
	Amount          decimal.Decimal `json:"amount"`
}

// CreditReleasedEvent reports a reservation returned to available credit.
type CreditReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderID       uuid.UUID `json:"order_id"`
	Reason        string    `json:"reason,omitempty"`
	ReleasedAt    time.Time `json:"released_at"`
}

// CreditConvertedEvent reports a reservation turned into ledger debt.
type CreditConvertedEvent struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentRecordedEvent reports a retailer payment against outstanding balance.
type PaymentRecordedEvent struct {
	LedgerEntryID   uuid.UUID       `json:"ledger_entry_id"`
	DebtorStoreID   uuid.UUID       `json:"debtor_store_id"`
	CreditorStoreID uuid.UUID       `json:"creditor_store_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       string          `json:"reference,omitempty"`
}

// RoutingBroadcastEvent announces an order offered to eligible vendors.
type RoutingBroadcastEvent struct {
	RoutingID       uuid.UUID             `json:"routing_id"`
	OrderID         uuid.UUID             `json:"order_id"`
	RetailerStoreID uuid.UUID             `json:"retailer_store_id"`
	Category        enums.ProductCategory `json:"category"`
	EligibleVendors []uuid.UUID           `json:"eligible_vendors"`
}

// VendorRespondedEvent records one vendor's answer to a broadcast.
type VendorRespondedEvent struct {
	RoutingID     uuid.UUID                `json:"routing_id"`
	OrderID       uuid.UUID                `json:"order_id"`
	VendorStoreID uuid.UUID                `json:"vendor_store_id"`
	Response      enums.VendorResponseType `json:"response"`
}

// VendorAcceptedEvent reports the routing winner.
type VendorAcceptedEvent struct {
	RoutingID     uuid.UUID `json:"routing_id"`
	OrderID       uuid.UUID `json:"order_id"`
	WinnerStoreID uuid.UUID `json:"winner_store_id"`
	AcceptedAt    time.Time `json:"accepted_at"`
}

// RoutingCancellationEvent tells a non-winning vendor the order is gone.
type RoutingCancellationEvent struct {
	RoutingID     uuid.UUID `json:"routing_id"`
	OrderID       uuid.UUID `json:"order_id"`
	VendorStoreID uuid.UUID `json:"vendor_store_id"`
	WinnerStoreID uuid.UUID `json:"winner_store_id"`
}

// ReservationExpiredEvent reports a TTL sweep releasing a stale hold.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	OrderID       uuid.UUID `json:"order_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// OrderRoutingTimeoutEvent reports an order failed for lack of vendor response.
type OrderRoutingTimeoutEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	RoutingID  uuid.UUID `json:"routing_id"`
	TimedOutAt time.Time `json:"timed_out_at"`
}
