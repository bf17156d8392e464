package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	dbtypes "github.com/ordena-ai/ordena-backend/pkg/db/types"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
)

type fakeRoutingRepo struct {
	routing   *models.VendorRouting
	responses []models.VendorResponse

	AcceptWinnerFn   func(ctx context.Context, routingID, vendorStoreID uuid.UUID, at time.Time) (int64, error)
	CreateResponseFn func(ctx context.Context, response *models.VendorResponse) error
}

func (f *fakeRoutingRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRoutingRepo) CreateRouting(ctx context.Context, routing *models.VendorRouting) error {
	if routing.ID == uuid.Nil {
		routing.ID = uuid.New()
	}
	f.routing = routing
	return nil
}

func (f *fakeRoutingRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.VendorRouting, error) {
	if f.routing == nil || f.routing.ID != id {
		return nil, nil
	}
	copied := *f.routing
	copied.Responses = append([]models.VendorResponse(nil), f.responses...)
	return &copied, nil
}

func (f *fakeRoutingRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error) {
	if f.routing == nil || f.routing.OrderID != orderID {
		return nil, nil
	}
	return f.FindByID(ctx, f.routing.ID)
}

func (f *fakeRoutingRepo) CreateResponse(ctx context.Context, response *models.VendorResponse) error {
	if f.CreateResponseFn != nil {
		return f.CreateResponseFn(ctx, response)
	}
	for _, existing := range f.responses {
		if existing.RoutingID == response.RoutingID && existing.VendorStoreID == response.VendorStoreID {
			return errors.New("UNIQUE constraint failed: vendor_responses.routing_id, vendor_responses.vendor_store_id")
		}
	}
	if response.ID == uuid.Nil {
		response.ID = uuid.New()
	}
	f.responses = append(f.responses, *response)
	return nil
}

func (f *fakeRoutingRepo) ListResponses(ctx context.Context, routingID uuid.UUID) ([]models.VendorResponse, error) {
	var out []models.VendorResponse
	for _, response := range f.responses {
		if response.RoutingID == routingID {
			out = append(out, response)
		}
	}
	return out, nil
}

func (f *fakeRoutingRepo) AcceptWinner(ctx context.Context, routingID, vendorStoreID uuid.UUID, at time.Time) (int64, error) {
	if f.AcceptWinnerFn != nil {
		return f.AcceptWinnerFn(ctx, routingID, vendorStoreID, at)
	}
	if f.routing == nil || f.routing.ID != routingID || f.routing.Status != enums.RoutingStatusPendingResponses {
		return 0, nil
	}
	f.routing.Status = enums.RoutingStatusVendorAccepted
	f.routing.WinnerStoreID = &vendorStoreID
	f.routing.AcceptedAt = &at
	return 1, nil
}

func (f *fakeRoutingRepo) CancelRouting(ctx context.Context, routingID uuid.UUID) (int64, error) {
	if f.routing == nil || f.routing.ID != routingID || f.routing.Status != enums.RoutingStatusPendingResponses {
		return 0, nil
	}
	f.routing.Status = enums.RoutingStatusCancelled
	return 1, nil
}

func (f *fakeRoutingRepo) MarkCancellationSent(ctx context.Context, responseID uuid.UUID, at time.Time) error {
	for i := range f.responses {
		if f.responses[i].ID == responseID {
			f.responses[i].CancellationSentAt = &at
		}
	}
	return nil
}

type fakeOrderMachine struct {
	order       *models.Order
	transitions []orders.TransitionInput

	TransitionFn func(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

func (f *fakeOrderMachine) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrderMachine) Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error) {
	f.transitions = append(f.transitions, input)
	if f.TransitionFn != nil {
		return f.TransitionFn(ctx, input)
	}
	if f.order == nil || f.order.ID != input.OrderID {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if !orders.CanTransition(f.order.Status, input.To) {
		return nil, apperrors.New(apperrors.CodeStateConflict, "transition not allowed from current state")
	}
	f.order.Status = input.To
	if input.WholesalerStoreID != nil {
		f.order.WholesalerStoreID = input.WholesalerStoreID
	}
	copied := *f.order
	return &copied, nil
}

type fakeVendorDirectory struct {
	vendors []models.Store
}

func (f *fakeVendorDirectory) FindEligibleVendors(ctx context.Context, category enums.ProductCategory) ([]models.Store, error) {
	return f.vendors, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) eventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.EventType)
	}
	return out
}

type routingFixture struct {
	repo    *fakeRoutingRepo
	orders  *fakeOrderMachine
	vendors *fakeVendorDirectory
	outbox  *fakeOutbox
	svc     Service
}

func newFixture(t *testing.T, vendorIDs ...uuid.UUID) *routingFixture {
	t.Helper()
	f := &routingFixture{
		repo:    &fakeRoutingRepo{},
		orders:  &fakeOrderMachine{},
		vendors: &fakeVendorDirectory{},
		outbox:  &fakeOutbox{},
	}
	for _, id := range vendorIDs {
		f.vendors.vendors = append(f.vendors.vendors, models.Store{
			ID:     id,
			Type:   enums.StoreTypeWholesaler,
			Active: true,
		})
	}
	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		Tx:      fakeTxRunner{},
		Outbox:  f.outbox,
		Orders:  f.orders,
		Vendors: f.vendors,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *routingFixture) seedOrder(status enums.OrderStatus) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     1001,
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Currency:        enums.CurrencyUSD,
		Status:          status,
		TotalAmount:     decimal.RequireFromString("120.00"),
	}
	f.orders.order = order
	return order
}

func (f *routingFixture) seedRouting(orderID uuid.UUID, vendorIDs ...uuid.UUID) *models.VendorRouting {
	routing := &models.VendorRouting{
		ID:              uuid.New(),
		OrderID:         orderID,
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Status:          enums.RoutingStatusPendingResponses,
		EligibleVendors: dbtypes.UUIDArray(vendorIDs),
	}
	f.repo.routing = routing
	return routing
}

func TestService_RouteOrder(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusCreditReserved)

	view, err := f.svc.RouteOrder(ctx, RouteOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("RouteOrder error: %v", err)
	}
	if view.Status != enums.RoutingStatusPendingResponses {
		t.Fatalf("unexpected routing status %s", view.Status)
	}
	if len(view.EligibleVendors) != 2 {
		t.Fatalf("expected 2 eligible vendors, got %d", len(view.EligibleVendors))
	}
	if f.orders.order.Status != enums.OrderStatusVendorNotified {
		t.Fatalf("order not moved to vendor_notified, got %s", f.orders.order.Status)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventRoutingBroadcast {
		t.Fatalf("expected routing_broadcast event, got %v", f.outbox.eventTypes())
	}
}

func TestService_RouteOrderNoVendors(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusValidated)

	_, err := f.svc.RouteOrder(context.Background(), RouteOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.repo.routing != nil {
		t.Fatal("no routing row should be created without vendors")
	}
}

func TestService_RouteOrderAlreadyRouted(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusValidated)
	f.seedRouting(order.ID, vendorA)

	_, err := f.svc.RouteOrder(context.Background(), RouteOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_RouteOrderWrongState(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusCreated)

	_, err := f.svc.RouteOrder(context.Background(), RouteOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestService_RouteOrderCompensatesLostTransition(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusValidated)

	f.orders.TransitionFn = func(ctx context.Context, input orders.TransitionInput) (*models.Order, error) {
		return nil, apperrors.New(apperrors.CodeStateConflict, "order status changed concurrently")
	}

	_, err := f.svc.RouteOrder(context.Background(), RouteOrderInput{OrderID: order.ID, ActorID: uuid.New()})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.repo.routing.Status != enums.RoutingStatusCancelled {
		t.Fatalf("routing should be cancelled after lost transition, got %s", f.repo.routing.Status)
	}
}

func TestService_AcceptWins(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	routing := f.seedRouting(order.ID, vendorA, vendorB)

	decision, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: vendorA,
		Response:      enums.VendorResponseAccepted,
		ActorID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if !decision.Accepted || decision.AlreadyWinner {
		t.Fatalf("expected fresh win, got %+v", decision)
	}
	if f.repo.routing.WinnerStoreID == nil || *f.repo.routing.WinnerStoreID != vendorA {
		t.Fatalf("winner not recorded, got %v", f.repo.routing.WinnerStoreID)
	}
	if f.orders.order.Status != enums.OrderStatusVendorAccepted {
		t.Fatalf("order not moved, got %s", f.orders.order.Status)
	}
	if f.orders.order.WholesalerStoreID == nil || *f.orders.order.WholesalerStoreID != vendorA {
		t.Fatalf("winner not bound on order, got %v", f.orders.order.WholesalerStoreID)
	}
	types := f.outbox.eventTypes()
	if len(types) != 2 || types[0] != enums.EventVendorResponded || types[1] != enums.EventVendorAccepted {
		t.Fatalf("unexpected events %v", types)
	}
	_ = routing
}

func TestService_AcceptLosesRace(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	order := f.seedOrder(enums.OrderStatusVendorAccepted)
	routing := f.seedRouting(order.ID, vendorA, vendorB)
	now := time.Now().UTC()
	routing.Status = enums.RoutingStatusVendorAccepted
	routing.WinnerStoreID = &vendorA
	routing.AcceptedAt = &now

	decision, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: vendorB,
		Response:      enums.VendorResponseAccepted,
		ActorID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if decision.Accepted {
		t.Fatal("loser must not be accepted")
	}
	if decision.Reason != ReasonLostRace {
		t.Fatalf("expected reason %q, got %q", ReasonLostRace, decision.Reason)
	}
	if decision.WinnerStoreID == nil || *decision.WinnerStoreID != vendorA {
		t.Fatalf("expected winner %s, got %v", vendorA, decision.WinnerStoreID)
	}
	if len(f.orders.transitions) != 0 {
		t.Fatalf("loser must not drive the order, got %v", f.orders.transitions)
	}
}

func TestService_AcceptIdempotentForWinner(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusVendorAccepted)
	routing := f.seedRouting(order.ID, vendorA)
	now := time.Now().UTC()
	routing.Status = enums.RoutingStatusVendorAccepted
	routing.WinnerStoreID = &vendorA
	routing.AcceptedAt = &now
	f.repo.responses = []models.VendorResponse{{
		ID:            uuid.New(),
		RoutingID:     routing.ID,
		VendorStoreID: vendorA,
		Response:      enums.VendorResponseAccepted,
	}}

	decision, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: vendorA,
		Response:      enums.VendorResponseAccepted,
		ActorID:       uuid.New(),
	})
	if err != nil {
		t.Fatalf("Respond error: %v", err)
	}
	if !decision.Accepted || !decision.AlreadyWinner {
		t.Fatalf("expected idempotent win, got %+v", decision)
	}
}

func TestService_DuplicateResponseConflicts(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	routing := f.seedRouting(order.ID, vendorA, vendorB)
	f.repo.responses = []models.VendorResponse{{
		ID:            uuid.New(),
		RoutingID:     routing.ID,
		VendorStoreID: vendorB,
		Response:      enums.VendorResponseRejected,
	}}

	_, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: vendorB,
		Response:      enums.VendorResponseRejected,
		ActorID:       uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestService_IneligibleVendorForbidden(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	f.seedRouting(order.ID, vendorA)

	_, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: uuid.New(),
		Response:      enums.VendorResponseAccepted,
		ActorID:       uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestService_AllRejectedClosesRouting(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	routing := f.seedRouting(order.ID, vendorA, vendorB)

	for _, vendor := range []uuid.UUID{vendorA, vendorB} {
		if _, err := f.svc.Respond(context.Background(), VendorResponseInput{
			OrderID:       order.ID,
			VendorStoreID: vendor,
			Response:      enums.VendorResponseRejected,
			ActorID:       uuid.New(),
		}); err != nil {
			t.Fatalf("Respond error for %s: %v", vendor, err)
		}
	}

	if f.repo.routing.Status != enums.RoutingStatusCancelled {
		t.Fatalf("routing should be cancelled, got %s", f.repo.routing.Status)
	}
	if f.orders.order.Status != enums.OrderStatusVendorRejected {
		t.Fatalf("order should be vendor_rejected, got %s", f.orders.order.Status)
	}
	_ = routing
}

func TestService_FirstRejectionKeepsRoutingOpen(t *testing.T) {
	vendorA, vendorB := uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	f.seedRouting(order.ID, vendorA, vendorB)

	if _, err := f.svc.Respond(context.Background(), VendorResponseInput{
		OrderID:       order.ID,
		VendorStoreID: vendorA,
		Response:      enums.VendorResponseRejected,
		ActorID:       uuid.New(),
	}); err != nil {
		t.Fatalf("Respond error: %v", err)
	}

	if f.repo.routing.Status != enums.RoutingStatusPendingResponses {
		t.Fatalf("routing should stay open, got %s", f.repo.routing.Status)
	}
	if len(f.orders.transitions) != 0 {
		t.Fatalf("order must not move on a partial rejection, got %v", f.orders.transitions)
	}
}

func TestService_SendAutoCancellations(t *testing.T) {
	vendorA, vendorB, vendorC := uuid.New(), uuid.New(), uuid.New()
	f := newFixture(t, vendorA, vendorB, vendorC)
	order := f.seedOrder(enums.OrderStatusVendorAccepted)
	routing := f.seedRouting(order.ID, vendorA, vendorB, vendorC)
	now := time.Now().UTC()
	routing.Status = enums.RoutingStatusVendorAccepted
	routing.WinnerStoreID = &vendorA
	routing.AcceptedAt = &now
	f.repo.responses = []models.VendorResponse{
		{ID: uuid.New(), RoutingID: routing.ID, VendorStoreID: vendorA, Response: enums.VendorResponseAccepted},
		{ID: uuid.New(), RoutingID: routing.ID, VendorStoreID: vendorB, Response: enums.VendorResponseAccepted},
		{ID: uuid.New(), RoutingID: routing.ID, VendorStoreID: vendorC, Response: enums.VendorResponseRejected},
	}

	sent, err := f.svc.SendAutoCancellations(context.Background(), routing.ID)
	if err != nil {
		t.Fatalf("SendAutoCancellations error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 cancellation, got %d", sent)
	}
	if f.repo.responses[1].CancellationSentAt == nil {
		t.Fatal("losing acceptance not stamped")
	}
	if f.repo.responses[0].CancellationSentAt != nil || f.repo.responses[2].CancellationSentAt != nil {
		t.Fatal("winner and rejections must not be stamped")
	}

	// A second sweep finds nothing left to send.
	sent, err = f.svc.SendAutoCancellations(context.Background(), routing.ID)
	if err != nil {
		t.Fatalf("SendAutoCancellations error: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected idempotent sweep, got %d", sent)
	}
}

func TestService_CancelForOrder(t *testing.T) {
	vendorA := uuid.New()
	f := newFixture(t, vendorA)
	order := f.seedOrder(enums.OrderStatusVendorNotified)
	f.seedRouting(order.ID, vendorA)

	if err := f.svc.CancelForOrder(context.Background(), order.ID); err != nil {
		t.Fatalf("CancelForOrder error: %v", err)
	}
	if f.repo.routing.Status != enums.RoutingStatusCancelled {
		t.Fatalf("routing should be cancelled, got %s", f.repo.routing.Status)
	}

	// No routing is not an error.
	if err := f.svc.CancelForOrder(context.Background(), uuid.New()); err != nil {
		t.Fatalf("CancelForOrder on unrouted order: %v", err)
	}
}
