package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateLedgerEntry        OutboxAggregateType = "ledger_entry"
	AggregateCreditReservation  OutboxAggregateType = "credit_reservation"
	AggregateCreditRelationship OutboxAggregateType = "credit_relationship"
	AggregateVendorRouting      OutboxAggregateType = "vendor_routing"
	AggregateStore              OutboxAggregateType = "store"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateLedgerEntry,
	AggregateCreditReservation,
	AggregateCreditRelationship,
	AggregateVendorRouting,
	AggregateStore,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStateChanged   OutboxEventType = "order_state_changed"
	EventCreditReserved      OutboxEventType = "credit_reserved"
	EventCreditReleased      OutboxEventType = "credit_released"
	EventCreditConverted     OutboxEventType = "credit_converted"
	EventPaymentRecorded     OutboxEventType = "payment_recorded"
	EventRoutingBroadcast    OutboxEventType = "routing_broadcast"
	EventVendorResponded     OutboxEventType = "vendor_responded"
	EventVendorAccepted      OutboxEventType = "vendor_accepted"
	EventRoutingCancellation OutboxEventType = "routing_cancellation"
	EventReservationExpired  OutboxEventType = "reservation_expired"
	EventOrderRoutingTimeout OutboxEventType = "order_routing_timeout"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStateChanged,
	EventCreditReserved,
	EventCreditReleased,
	EventCreditConverted,
	EventPaymentRecorded,
	EventRoutingBroadcast,
	EventVendorResponded,
	EventVendorAccepted,
	EventRoutingCancellation,
	EventReservationExpired,
	EventOrderRoutingTimeout,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
