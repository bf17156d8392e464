package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/audit"
	"github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

type fakeOrdersRepo struct {
	order  *models.Order
	events []models.OrderEvent

	FindFn            func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatusFn    func(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	HasTransitionToFn func(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error)
	CreateFn          func(ctx context.Context, order *models.Order) error
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if f.CreateFn != nil {
		return f.CreateFn(ctx, order)
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.OrderNumber = 1001
	f.order = order
	return nil
}

func (f *fakeOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	return nil
}

func (f *fakeOrdersRepo) Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.FindFn != nil {
		return f.FindFn(ctx, orderID)
	}
	if f.order == nil || f.order.ID != orderID {
		return nil, nil
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrdersRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if f.UpdateStatusFn != nil {
		return f.UpdateStatusFn(ctx, orderID, from, to, updates)
	}
	if f.order == nil || f.order.ID != orderID || f.order.Status != from {
		return 0, nil
	}
	f.order.Status = to
	if v, ok := updates["wholesaler_store_id"]; ok {
		id := v.(uuid.UUID)
		f.order.WholesalerStoreID = &id
	}
	return 1, nil
}

func (f *fakeOrdersRepo) CreateEvent(ctx context.Context, event *models.OrderEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeOrdersRepo) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var out []models.OrderEvent
	for _, event := range f.events {
		if event.OrderID == orderID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeOrdersRepo) HasTransitionTo(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error) {
	if f.HasTransitionToFn != nil {
		return f.HasTransitionToFn(ctx, orderID, to)
	}
	for _, event := range f.events {
		if event.OrderID == orderID && event.ToStatus == to {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrdersRepo) ListByStatusBefore(ctx context.Context, status enums.OrderStatus, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) ListByRetailer(ctx context.Context, retailerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	return &OrderList{}, nil
}

func (f *fakeOrdersRepo) ListByWholesaler(ctx context.Context, wholesalerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	return &OrderList{}, nil
}

type fakeCredit struct {
	ReserveCreditFn func(ctx context.Context, input credit.ReserveCreditInput) (*models.CreditReservation, error)

	reserved  []credit.ReserveCreditInput
	finalized []uuid.UUID
	released  []string
}

func (f *fakeCredit) ReserveCredit(ctx context.Context, input credit.ReserveCreditInput) (*models.CreditReservation, error) {
	if f.ReserveCreditFn != nil {
		return f.ReserveCreditFn(ctx, input)
	}
	f.reserved = append(f.reserved, input)
	return &models.CreditReservation{
		ID:      uuid.New(),
		OrderID: input.OrderID,
		Amount:  input.Amount,
		Status:  enums.ReservationStatusActive,
	}, nil
}

func (f *fakeCredit) ReleaseActiveByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.CreditReservation, error) {
	f.released = append(f.released, orderID.String()+":"+reason)
	return nil, nil
}

func (f *fakeCredit) FinalizeReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.CreditReservation, error) {
	f.finalized = append(f.finalized, orderID)
	return &models.CreditReservation{OrderID: orderID, Status: enums.ReservationStatusConvertedToDebit}, nil
}

type fakeCatalog struct {
	PriceItemsFn func(ctx context.Context, category enums.ProductCategory, items []catalog.ItemRequest) (*catalog.PricedOrder, error)
}

func (f *fakeCatalog) PriceItems(ctx context.Context, category enums.ProductCategory, items []catalog.ItemRequest) (*catalog.PricedOrder, error) {
	if f.PriceItemsFn != nil {
		return f.PriceItemsFn(ctx, category, items)
	}
	unit := decimal.RequireFromString("10.00")
	priced := &catalog.PricedOrder{Total: decimal.Zero}
	for _, item := range items {
		total := unit.Mul(decimal.NewFromInt(int64(item.Qty)))
		priced.Items = append(priced.Items, catalog.PricedItem{
			ProductID: item.ProductID,
			Name:      "Fixture Product",
			Unit:      enums.ProductUnitCase,
			UnitPrice: unit,
			Qty:       item.Qty,
			Total:     total,
		})
		priced.Total = priced.Total.Add(total)
	}
	return priced, nil
}

type fakeStores struct {
	RequireActiveStoreFn func(ctx context.Context, storeID uuid.UUID, storeType enums.StoreType) (*models.Store, error)
}

func (f *fakeStores) RequireActiveStore(ctx context.Context, storeID uuid.UUID, storeType enums.StoreType) (*models.Store, error) {
	if f.RequireActiveStoreFn != nil {
		return f.RequireActiveStoreFn(ctx, storeID, storeType)
	}
	return &models.Store{ID: storeID, Type: storeType, Active: true}, nil
}

type fakeRoutingDir struct {
	routing *models.VendorRouting

	FindByOrderIDFn func(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error)
}

func (f *fakeRoutingDir) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error) {
	if f.FindByOrderIDFn != nil {
		return f.FindByOrderIDFn(ctx, orderID)
	}
	if f.routing == nil || f.routing.OrderID != orderID {
		return nil, nil
	}
	copied := *f.routing
	return &copied, nil
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

type fakeAudit struct {
	records []audit.RecordInput
}

func (f *fakeAudit) Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error {
	f.records = append(f.records, input)
	return nil
}

func (f *fakeAudit) lastAction() enums.AuditAction {
	if len(f.records) == 0 {
		return ""
	}
	return f.records[len(f.records)-1].Action
}

type ordersFixture struct {
	repo    *fakeOrdersRepo
	credit  *fakeCredit
	catalog *fakeCatalog
	stores  *fakeStores
	routing *fakeRoutingDir
	outbox  *fakeOutbox
	audit   *fakeAudit
	svc     Service
}

func newFixture(t *testing.T) *ordersFixture {
	t.Helper()
	f := &ordersFixture{
		repo:    &fakeOrdersRepo{},
		credit:  &fakeCredit{},
		catalog: &fakeCatalog{},
		stores:  &fakeStores{},
		routing: &fakeRoutingDir{},
		outbox:  &fakeOutbox{},
		audit:   &fakeAudit{},
	}
	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		Tx:      fakeTxRunner{},
		Outbox:  f.outbox,
		Audit:   f.audit,
		Credit:  f.credit,
		Catalog: f.catalog,
		Stores:  f.stores,
		Routing: f.routing,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *ordersFixture) seedOrder(status enums.OrderStatus, wholesaler *uuid.UUID) *models.Order {
	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       1001,
		RetailerStoreID:   uuid.New(),
		WholesalerStoreID: wholesaler,
		Category:          enums.ProductCategoryBeverages,
		Currency:          enums.CurrencyUSD,
		Status:            status,
		TotalAmount:       decimal.RequireFromString("120.00"),
	}
	f.repo.order = order
	return order
}

func (f *ordersFixture) seedRouting(orderID uuid.UUID, status enums.RoutingStatus, winner *uuid.UUID) *models.VendorRouting {
	routing := &models.VendorRouting{
		ID:            uuid.New(),
		OrderID:       orderID,
		Status:        status,
		WinnerStoreID: winner,
	}
	f.routing.routing = routing
	return routing
}

func TestService_CreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Items: []OrderItemInput{
			{ProductID: uuid.New(), Qty: 3},
			{ProductID: uuid.New(), Qty: 2},
		},
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if order.Status != enums.OrderStatusCreated {
		t.Fatalf("expected status created, got %s", order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected total %s", order.TotalAmount)
	}
	if order.Currency != enums.CurrencyUSD {
		t.Fatalf("expected USD default, got %s", order.Currency)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created event, got %+v", f.outbox.events)
	}
	if f.audit.lastAction() != enums.AuditActionOrderCreated {
		t.Fatalf("expected order_created audit row, got %s", f.audit.lastAction())
	}
}

func TestService_CreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actorID := uuid.New()
	item := OrderItemInput{ProductID: uuid.New(), Qty: 1}

	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{"missing retailer", CreateOrderInput{Category: enums.ProductCategoryBeverages, Items: []OrderItemInput{item}, ActorID: actorID}},
		{"bad category", CreateOrderInput{RetailerStoreID: uuid.New(), Category: "gadgets", Items: []OrderItemInput{item}, ActorID: actorID}},
		{"no items", CreateOrderInput{RetailerStoreID: uuid.New(), Category: enums.ProductCategoryBeverages, ActorID: actorID}},
		{"bad currency", CreateOrderInput{RetailerStoreID: uuid.New(), Category: enums.ProductCategoryBeverages, Currency: "DOGE", Items: []OrderItemInput{item}, ActorID: actorID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, tc.input)
			typed := apperrors.As(err)
			if typed == nil || typed.Code() != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Items:           []OrderItemInput{item},
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized without actor, got %v", err)
	}
}

func TestAllowedTransitions(t *testing.T) {
	tests := []struct {
		from enums.OrderStatus
		want []enums.OrderStatus
	}{
		{enums.OrderStatusCreated, []enums.OrderStatus{enums.OrderStatusValidated, enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusValidated, []enums.OrderStatus{enums.OrderStatusCreditReserved, enums.OrderStatusVendorNotified, enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusCreditReserved, []enums.OrderStatus{enums.OrderStatusVendorNotified, enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusVendorNotified, []enums.OrderStatus{enums.OrderStatusVendorAccepted, enums.OrderStatusVendorRejected, enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusVendorAccepted, []enums.OrderStatus{enums.OrderStatusFulfilled, enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusVendorRejected, []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusFailed}},
		{enums.OrderStatusFulfilled, []enums.OrderStatus{}},
		{enums.OrderStatusCancelled, []enums.OrderStatus{}},
		{enums.OrderStatusFailed, []enums.OrderStatus{}},
	}
	for _, tc := range tests {
		t.Run(tc.from.String(), func(t *testing.T) {
			got := AllowedTransitions(tc.from)
			if len(got) != len(tc.want) {
				t.Fatalf("from %s: expected %v, got %v", tc.from, tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("from %s: expected %v, got %v", tc.from, tc.want, got)
				}
			}
		})
	}
}

func TestService_TransitionRejectsIllegalStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusCreated, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFulfilled,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.repo.order.Status != enums.OrderStatusCreated {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}
	if f.audit.lastAction() != enums.AuditActionOrderTransitionDenied {
		t.Fatalf("expected denial audit row, got %s", f.audit.lastAction())
	}
}

func TestService_TransitionSameStatusRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusValidated, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusValidated,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.repo.events) != 0 {
		t.Fatalf("rejected transition must not append events, got %d", len(f.repo.events))
	}
	if f.audit.lastAction() != enums.AuditActionOrderTransitionDenied {
		t.Fatalf("expected denial audit row, got %s", f.audit.lastAction())
	}
}

func TestService_TransitionTerminalSelfStepRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusFulfilled, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFulfilled,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.credit.finalized) != 0 {
		t.Fatal("a repeated fulfillment must not touch the reservation")
	}
	if f.repo.order.Status != enums.OrderStatusFulfilled {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}
}

func TestService_TransitionUnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		OrderID: uuid.New(),
		To:      enums.OrderStatusValidated,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_CreditReservedStepReservesCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wholesalerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusValidated, &wholesalerID)
	actorID := uuid.New()

	got, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCreditReserved,
		ActorID: actorID,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if got.Status != enums.OrderStatusCreditReserved {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.CreditReservedAt == nil {
		t.Fatal("credit_reserved_at not stamped")
	}
	if len(f.credit.reserved) != 1 {
		t.Fatalf("expected one reservation, got %d", len(f.credit.reserved))
	}
	input := f.credit.reserved[0]
	if input.WholesalerStoreID != wholesalerID || !input.Amount.Equal(order.TotalAmount) {
		t.Fatalf("unexpected reservation input %+v", input)
	}
	if len(f.repo.events) != 1 || f.repo.events[0].ToStatus != enums.OrderStatusCreditReserved {
		t.Fatalf("expected credit_reserved event row, got %+v", f.repo.events)
	}
}

func TestService_CreditReservedNeedsWholesaler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusValidated, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCreditReserved,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.credit.reserved) != 0 {
		t.Fatal("no reservation should be attempted without a wholesaler")
	}
}

func TestService_CreditReservedPropagatesReserveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wholesalerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusValidated, &wholesalerID)

	f.credit.ReserveCreditFn = func(ctx context.Context, input credit.ReserveCreditInput) (*models.CreditReservation, error) {
		return nil, apperrors.New(apperrors.CodeInsufficientCredit, "not enough credit")
	}

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCreditReserved,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	if f.repo.order.Status != enums.OrderStatusValidated {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}
	if f.audit.lastAction() != enums.AuditActionOrderTransitionDenied {
		t.Fatalf("expected denial audit row, got %s", f.audit.lastAction())
	}
}

func TestService_LostRaceReleasesFreshReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wholesalerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusValidated, &wholesalerID)

	// Another writer moves the order between the read and the swap.
	f.repo.UpdateStatusFn = func(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
		return 0, nil
	}

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCreditReserved,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	want := order.ID.String() + ":transition aborted"
	if len(f.credit.released) != 1 || f.credit.released[0] != want {
		t.Fatalf("expected compensating release %q, got %v", want, f.credit.released)
	}
}

func TestService_FulfillmentRequiresReservedHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wholesalerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusVendorAccepted, &wholesalerID)

	// History shows the credit step was skipped.
	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFulfilled,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeCreditNotReserved {
		t.Fatalf("expected credit not reserved, got %v", err)
	}
	if f.repo.order.Status != enums.OrderStatusVendorAccepted {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}

	// With the credit_reserved event in history the same step succeeds.
	f.repo.events = append(f.repo.events, models.OrderEvent{
		OrderID:    order.ID,
		FromStatus: enums.OrderStatusValidated,
		ToStatus:   enums.OrderStatusCreditReserved,
	})
	got, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFulfilled,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if got.Status != enums.OrderStatusFulfilled {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if len(f.credit.finalized) != 1 || f.credit.finalized[0] != order.ID {
		t.Fatalf("expected reservation finalized for %s, got %v", order.ID, f.credit.finalized)
	}
}

func TestService_SkipCreditPathFailsOnlyAtFulfillment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actorID := uuid.New()
	wholesalerID := uuid.New()
	// A direct order carries its wholesaler from creation, so the vendor
	// steps pass without a broadcast.
	order := f.seedOrder(enums.OrderStatusCreated, &wholesalerID)

	steps := []TransitionInput{
		{OrderID: order.ID, To: enums.OrderStatusValidated, ActorID: actorID},
		{OrderID: order.ID, To: enums.OrderStatusVendorNotified, ActorID: actorID},
		{OrderID: order.ID, To: enums.OrderStatusVendorAccepted, ActorID: actorID, WholesalerStoreID: &wholesalerID},
	}
	for _, step := range steps {
		if _, err := f.svc.Transition(ctx, step); err != nil {
			t.Fatalf("step to %s failed: %v", step.To, err)
		}
	}

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFulfilled,
		ActorID: actorID,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeCreditNotReserved {
		t.Fatalf("expected credit not reserved at fulfillment, got %v", err)
	}
}

func TestService_VendorAcceptedBindsRoutingWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusVendorNotified, nil)
	winnerID := uuid.New()
	f.seedRouting(order.ID, enums.RoutingStatusVendorAccepted, &winnerID)

	// The caller omits the wholesaler; the routing winner is bound anyway.
	got, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorAccepted,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if got.WholesalerStoreID == nil || *got.WholesalerStoreID != winnerID {
		t.Fatalf("winner not bound, got %v", got.WholesalerStoreID)
	}
	if got.VendorDecidedAt == nil {
		t.Fatal("vendor_decided_at not stamped")
	}
}

func TestService_VendorAcceptedNeedsRoutingOrWholesaler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusVendorNotified, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorAccepted,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.repo.order.Status != enums.OrderStatusVendorNotified {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}
	if f.audit.lastAction() != enums.AuditActionOrderTransitionDenied {
		t.Fatalf("expected denial audit row, got %s", f.audit.lastAction())
	}
}

func TestService_VendorAcceptedNeedsRoutingWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusVendorNotified, nil)
	f.seedRouting(order.ID, enums.RoutingStatusPendingResponses, nil)

	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorAccepted,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict while the race is open, got %v", err)
	}
	if f.repo.order.Status != enums.OrderStatusVendorNotified {
		t.Fatalf("status must not move, got %s", f.repo.order.Status)
	}
}

func TestService_VendorAcceptedRejectsNonWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusVendorNotified, nil)
	winnerID := uuid.New()
	f.seedRouting(order.ID, enums.RoutingStatusVendorAccepted, &winnerID)

	loserID := uuid.New()
	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID:           order.ID,
		To:                enums.OrderStatusVendorAccepted,
		ActorID:           uuid.New(),
		WholesalerStoreID: &loserID,
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict for the losing vendor, got %v", err)
	}
	if f.repo.order.WholesalerStoreID != nil {
		t.Fatalf("loser must not be bound, got %v", f.repo.order.WholesalerStoreID)
	}
}

func TestService_VendorNotifiedNeedsBroadcastOrDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedOrder(enums.OrderStatusValidated, nil)

	// No broadcast, no direct wholesaler: the step is refused.
	_, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorNotified,
		ActorID: uuid.New(),
	})
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}

	// A cancelled broadcast does not count as open.
	f.seedRouting(order.ID, enums.RoutingStatusCancelled, nil)
	_, err = f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorNotified,
		ActorID: uuid.New(),
	})
	typed = apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeStateConflict {
		t.Fatalf("expected state conflict on cancelled broadcast, got %v", err)
	}

	// An open broadcast lets the step through.
	f.seedRouting(order.ID, enums.RoutingStatusPendingResponses, nil)
	got, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorNotified,
		ActorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if got.VendorNotifiedAt == nil {
		t.Fatal("vendor_notified_at not stamped")
	}
}

func TestService_CancelReleasesActiveHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wholesalerID := uuid.New()
	order := f.seedOrder(enums.OrderStatusVendorNotified, &wholesalerID)
	reason := "retailer changed their mind"

	got, err := f.svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusCancelled,
		ActorID: uuid.New(),
		Reason:  &reason,
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if got.Status != enums.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", got.Status)
	}
	want := order.ID.String() + ":order cancelled"
	if len(f.credit.released) != 1 || f.credit.released[0] != want {
		t.Fatalf("expected release %q, got %v", want, f.credit.released)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderStateChanged {
		t.Fatalf("expected state change event, got %+v", f.outbox.events)
	}
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) error {
	return fmt.Errorf("audit log unavailable")
}

func TestService_TransitionRollsBackOnMidTxFailure(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, time.Now().UTC())

	// The audit write is the last statement in the transaction; its failure
	// must take the status swap and the event row down with it.
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      gormTxRunner{db: db},
		Outbox:  &fakeOutbox{},
		Audit:   failingAudit{},
		Credit:  &fakeCredit{},
		Catalog: &fakeCatalog{},
		Stores:  &fakeStores{},
		Routing: &fakeRoutingDir{},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	_, err = svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusValidated,
		ActorID: uuid.New(),
	})
	if err == nil {
		t.Fatal("expected the transition to fail")
	}

	loaded, err := repo.Find(ctx, order.ID)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if loaded.Status != enums.OrderStatusCreated {
		t.Fatalf("status must stay created after rollback, got %s", loaded.Status)
	}
	events, err := repo.ListEvents(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("rolled-back transition must leave no events, got %d", len(events))
	}
}

func TestService_GetOrderState(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusValidated, nil)

	state, err := f.svc.GetOrderState(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrderState error: %v", err)
	}
	want := fmt.Sprintf("%v", []enums.OrderStatus{
		enums.OrderStatusCreditReserved,
		enums.OrderStatusVendorNotified,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
	})
	if fmt.Sprintf("%v", state.ValidNextStates) != want {
		t.Fatalf("unexpected next states %v", state.ValidNextStates)
	}
}
