package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ordena-ai/ordena-backend/pkg/config"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderCreatedEvent{
		OrderID:         orderID,
		OrderNumber:     1042,
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Currency:        enums.CurrencyUSD,
		TotalAmount:     decimal.RequireFromString("125.50"),
	})

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Descriptor.EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected event type %s", resolved.Descriptor.EventType)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.OrderNumber != 1042 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
	if resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope missing occurred_at")
	}
}

func TestEventRegistryTopicFanout(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := []struct {
		eventType enums.OutboxEventType
		aggregate enums.OutboxAggregateType
		payload   interface{}
		topic     string
	}{
		{
			eventType: enums.EventCreditReserved,
			aggregate: enums.AggregateCreditReservation,
			payload: payloads.CreditReservedEvent{
				ReservationID: uuid.New(),
				OrderID:       uuid.New(),
				Amount:        decimal.RequireFromString("40.00"),
			},
			topic: "credit-topic",
		},
		{
			eventType: enums.EventPaymentRecorded,
			aggregate: enums.AggregateLedgerEntry,
			payload: payloads.PaymentRecordedEvent{
				LedgerEntryID: uuid.New(),
				Amount:        decimal.RequireFromString("15.00"),
			},
			topic: "credit-topic",
		},
		{
			eventType: enums.EventVendorAccepted,
			aggregate: enums.AggregateVendorRouting,
			payload: payloads.VendorAcceptedEvent{
				RoutingID:     uuid.New(),
				OrderID:       uuid.New(),
				WinnerStoreID: uuid.New(),
				AcceptedAt:    time.Now().UTC(),
			},
			topic: "routing-topic",
		},
		{
			eventType: enums.EventOrderRoutingTimeout,
			aggregate: enums.AggregateOrder,
			payload: payloads.OrderRoutingTimeoutEvent{
				OrderID:    uuid.New(),
				TimedOutAt: time.Now().UTC(),
			},
			topic: "orders-topic",
		},
	}

	for _, tc := range cases {
		event := models.OutboxEvent{
			EventType:     tc.eventType,
			AggregateType: tc.aggregate,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, mustMarshal(t, tc.payload)),
		}
		resolved, err := reg.Resolve(event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.eventType, err)
		}
		if resolved.Descriptor.Topic != tc.topic {
			t.Fatalf("%s: expected topic %q, got %q", tc.eventType, tc.topic, resolved.Descriptor.Topic)
		}
	}
}

func TestEventRegistryResolveUnknownEvent(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.OutboxEventType("store_verified"),
		AggregateType: enums.AggregateStore,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %T", err)
	}
}

func TestEventRegistryResolveAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateStore,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte(`{"order_id":"00000000-0000-0000-0000-000000000000"}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveMissingAggregateID(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.Nil,
		Payload:       mustEnvelope(t, []byte(`{}`)),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func TestEventRegistryResolveNullPayload(t *testing.T) {
	reg := newTestEventRegistry(t)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, []byte("null")),
	}

	_, err := reg.Resolve(event)
	if err == nil {
		t.Fatalf("expected error")
	}
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	cfg := config.PubSubConfig{
		OrdersTopic:  "orders-topic",
		CreditTopic:  "credit-topic",
		RoutingTopic: "routing-topic",
	}
	reg, err := NewEventRegistry(cfg)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
