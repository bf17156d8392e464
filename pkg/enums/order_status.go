package enums

import "fmt"

// OrderStatus represents the canonical order_status enum in Postgres.
type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusValidated      OrderStatus = "validated"
	OrderStatusCreditReserved OrderStatus = "credit_reserved"
	OrderStatusVendorNotified OrderStatus = "vendor_notified"
	OrderStatusVendorAccepted OrderStatus = "vendor_accepted"
	OrderStatusVendorRejected OrderStatus = "vendor_rejected"
	OrderStatusFulfilled      OrderStatus = "fulfilled"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusFailed         OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusValidated,
	OrderStatusCreditReserved,
	OrderStatusVendorNotified,
	OrderStatusVendorAccepted,
	OrderStatusVendorRejected,
	OrderStatusFulfilled,
	OrderStatusCancelled,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFulfilled, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
