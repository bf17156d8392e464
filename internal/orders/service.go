package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/audit"
	"github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// creditManager is the slice of the credit service the state machine drives.
type creditManager interface {
	ReserveCredit(ctx context.Context, input credit.ReserveCreditInput) (*models.CreditReservation, error)
	ReleaseActiveByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.CreditReservation, error)
	FinalizeReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.CreditReservation, error)
}

// catalogPricer turns requested product lines into priced order items.
type catalogPricer interface {
	PriceItems(ctx context.Context, category enums.ProductCategory, items []catalog.ItemRequest) (*catalog.PricedOrder, error)
}

// storeDirectory verifies the stores an order references.
type storeDirectory interface {
	RequireActiveStore(ctx context.Context, storeID uuid.UUID, storeType enums.StoreType) (*models.Store, error)
}

// routingReader reads the vendor broadcast bound to an order. The state
// machine only checks it on vendor transitions; it never writes routings.
type routingReader interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error)
}

// Service is the order state machine: the only writer of Order.Status.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrderState(ctx context.Context, orderID uuid.UUID) (*OrderState, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
	ListRetailerOrders(ctx context.Context, retailerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListWholesalerOrders(ctx context.Context, wholesalerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
}

// ServiceParams configure the order service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Audit   audit.Recorder
	Credit  creditManager
	Catalog catalogPricer
	Stores  storeDirectory
	Routing routingReader
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	audit   audit.Recorder
	credit  creditManager
	catalog catalogPricer
	stores  storeDirectory
	routing routingReader
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Credit == nil {
		return nil, fmt.Errorf("credit manager required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog pricer required")
	}
	if params.Stores == nil {
		return nil, fmt.Errorf("store directory required")
	}
	if params.Routing == nil {
		return nil, fmt.Errorf("routing reader required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		audit:   params.Audit,
		credit:  params.Credit,
		catalog: params.Catalog,
		stores:  params.Stores,
		routing: params.Routing,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.RetailerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer store id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Category.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid product category")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "order needs at least one item")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid currency")
	}

	if _, err := s.stores.RequireActiveStore(ctx, input.RetailerStoreID, enums.StoreTypeRetailer); err != nil {
		return nil, err
	}
	if input.WholesalerStoreID != nil {
		if _, err := s.stores.RequireActiveStore(ctx, *input.WholesalerStoreID, enums.StoreTypeWholesaler); err != nil {
			return nil, err
		}
	}

	requests := make([]catalog.ItemRequest, 0, len(input.Items))
	for _, item := range input.Items {
		requests = append(requests, catalog.ItemRequest{ProductID: item.ProductID, Qty: item.Qty})
	}
	priced, err := s.catalog.PriceItems(ctx, input.Category, requests)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		RetailerStoreID:   input.RetailerStoreID,
		WholesalerStoreID: input.WholesalerStoreID,
		Category:          input.Category,
		Currency:          currency,
		Status:            enums.OrderStatusCreated,
		TotalAmount:       priced.Total,
		Notes:             input.Notes,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		items := make([]models.OrderLineItem, 0, len(priced.Items))
		for _, line := range priced.Items {
			items = append(items, models.OrderLineItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Name:      line.Name,
				Unit:      line.Unit,
				UnitPrice: line.UnitPrice,
				Qty:       line.Qty,
				Total:     line.Total,
			})
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionOrderCreated,
			ActorID:    input.ActorID,
			EntityType: "order",
			EntityID:   order.ID,
			Outcome:    audit.OutcomeApproved,
			Details: map[string]any{
				"order_number": order.OrderNumber,
				"total_amount": order.TotalAmount.String(),
				"items":        len(items),
			},
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.OrderCreatedEvent{
				OrderID:         order.ID,
				OrderNumber:     order.OrderNumber,
				RetailerStoreID: order.RetailerStoreID,
				Category:        order.Category,
				Currency:        order.Currency,
				TotalAmount:     order.TotalAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Transition moves the order one step through the lifecycle. The status swap,
// the OrderEvent row and the audit row commit in one transaction; the swap is
// a compare-and-set against the status the caller observed, so concurrent
// attempts resolve to exactly one winner.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.To.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid target status")
	}

	order, err := s.repo.Find(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}

	from := order.Status
	if !CanTransition(from, input.To) {
		s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "transition not in table")
		return nil, invalidTransitionError(from, input.To)
	}

	var reservation *models.CreditReservation
	var acceptedVendor *uuid.UUID
	switch input.To {
	case enums.OrderStatusCreditReserved:
		wholesalerID := order.WholesalerStoreID
		if input.WholesalerStoreID != nil {
			wholesalerID = input.WholesalerStoreID
		}
		if wholesalerID == nil {
			s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "no wholesaler bound")
			return nil, apperrors.New(apperrors.CodeStateConflict, "order has no wholesaler to reserve credit against")
		}
		reservation, err = s.credit.ReserveCredit(ctx, credit.ReserveCreditInput{
			RetailerStoreID:   order.RetailerStoreID,
			WholesalerStoreID: *wholesalerID,
			OrderID:           order.ID,
			Amount:            order.TotalAmount,
			ActorID:           input.ActorID,
		})
		if err != nil {
			s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, err.Error())
			return nil, err
		}

	case enums.OrderStatusVendorNotified:
		// A broadcast must already be open, unless the order was placed
		// directly against a wholesaler and skips the broadcast entirely.
		routing, err := s.routing.FindByOrderID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		open := routing != nil && routing.Status != enums.RoutingStatusCancelled
		if !open && order.WholesalerStoreID == nil {
			s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "no open vendor broadcast")
			return nil, apperrors.New(apperrors.CodeStateConflict, "order has no open vendor broadcast and no direct wholesaler")
		}

	case enums.OrderStatusVendorAccepted:
		// Acceptance is owned by the routing race: the order may only bind
		// the vendor the broadcast recorded as winner.
		routing, err := s.routing.FindByOrderID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		candidate := order.WholesalerStoreID
		if input.WholesalerStoreID != nil {
			candidate = input.WholesalerStoreID
		}
		switch {
		case routing != nil:
			if routing.WinnerStoreID == nil {
				s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "routing has no winner")
				return nil, apperrors.New(apperrors.CodeStateConflict, "no vendor has won the broadcast for this order")
			}
			if candidate != nil && *candidate != *routing.WinnerStoreID {
				s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "wholesaler does not match routing winner")
				return nil, apperrors.New(apperrors.CodeStateConflict, "wholesaler does not match the winning vendor").
					WithDetails(map[string]any{"winner_store_id": routing.WinnerStoreID.String()})
			}
			acceptedVendor = routing.WinnerStoreID
		case candidate == nil:
			s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "no routing and no wholesaler bound")
			return nil, apperrors.New(apperrors.CodeStateConflict, "order has no routing and no wholesaler bound")
		default:
			// Direct order: the bound wholesaler accepts for itself.
			acceptedVendor = candidate
		}

	case enums.OrderStatusFulfilled:
		// The precondition reads the event history, not the in-memory
		// status, so it holds across restarts and replayed requests.
		reserved, err := s.repo.HasTransitionTo(ctx, order.ID, enums.OrderStatusCreditReserved)
		if err != nil {
			return nil, err
		}
		if !reserved {
			s.recordDenied(ctx, order.ID, input.ActorID, from, input.To, "credit was never reserved")
			return nil, apperrors.New(apperrors.CodeCreditNotReserved, "order has no credit_reserved transition in history").
				WithDetails(map[string]any{"order_id": order.ID.String()})
		}
	}

	now := time.Now().UTC()
	updates := statusTimestampUpdates(input.To, now)
	if input.To == enums.OrderStatusVendorAccepted && acceptedVendor != nil {
		updates["wholesaler_store_id"] = *acceptedVendor
	}
	if input.To == enums.OrderStatusCreditReserved && order.WholesalerStoreID == nil && input.WholesalerStoreID != nil {
		updates["wholesaler_store_id"] = *input.WholesalerStoreID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		count, err := repo.UpdateStatus(ctx, order.ID, from, input.To, updates)
		if err != nil {
			return err
		}
		if count == 0 {
			return apperrors.New(apperrors.CodeStateConflict, "order status changed concurrently").
				WithDetails(map[string]any{"expected": from.String()})
		}

		if err := repo.CreateEvent(ctx, &models.OrderEvent{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   input.To,
			ActorID:    input.ActorID,
			Reason:     input.Reason,
			Metadata:   input.Metadata,
		}); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionOrderTransition,
			ActorID:    input.ActorID,
			EntityType: "order",
			EntityID:   order.ID,
			Outcome:    audit.OutcomeApproved,
			Details:    map[string]any{"from": from.String(), "to": input.To.String()},
		}); err != nil {
			return err
		}

		switch input.To {
		case enums.OrderStatusFulfilled:
			if _, err := s.credit.FinalizeReservation(ctx, tx, order.ID); err != nil {
				return err
			}
		case enums.OrderStatusCancelled, enums.OrderStatusFailed:
			if _, err := s.credit.ReleaseActiveByOrderTx(ctx, tx, order.ID, "order "+input.To.String()); err != nil {
				return err
			}
		}

		reason := ""
		if input.Reason != nil {
			reason = *input.Reason
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.OrderStateChangedEvent{
				OrderID:    order.ID,
				FromStatus: from,
				ToStatus:   input.To,
				ActorID:    input.ActorID,
				Reason:     reason,
			},
		})
	})
	if err != nil {
		if reservation != nil {
			// The hold was taken but the transition never committed.
			s.releaseAborted(ctx, order.ID)
		}
		return nil, err
	}

	order.Status = input.To
	applyStatusTimestamp(order, input.To, now)
	if v, ok := updates["wholesaler_store_id"]; ok {
		id := v.(uuid.UUID)
		order.WholesalerStoreID = &id
	}
	return order, nil
}

// releaseAborted compensates a reservation whose transition never committed.
// Best effort: if it fails too, the TTL sweep reclaims the hold.
func (s *service) releaseAborted(ctx context.Context, orderID uuid.UUID) {
	_ = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.credit.ReleaseActiveByOrderTx(ctx, tx, orderID, "transition aborted")
		return err
	})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) GetOrderState(ctx context.Context, orderID uuid.UUID) (*OrderState, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderState{
		OrderID:         order.ID,
		Status:          order.Status,
		ValidNextStates: AllowedTransitions(order.Status),
	}, nil
}

func (s *service) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	return s.repo.ListEvents(ctx, orderID)
}

func (s *service) ListRetailerOrders(ctx context.Context, retailerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if retailerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer store id required")
	}
	return s.repo.ListByRetailer(ctx, retailerStoreID, params, filters)
}

func (s *service) ListWholesalerOrders(ctx context.Context, wholesalerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if wholesalerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "wholesaler store id required")
	}
	return s.repo.ListByWholesaler(ctx, wholesalerStoreID, params, filters)
}

// recordDenied writes the forensic row for a refused transition in its own
// transaction, so the denial is visible even though nothing else commits.
func (s *service) recordDenied(ctx context.Context, orderID, actorID uuid.UUID, from, to enums.OrderStatus, reason string) {
	_ = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionOrderTransitionDenied,
			ActorID:    actorID,
			EntityType: "order",
			EntityID:   orderID,
			Outcome:    audit.OutcomeDenied,
			Details: map[string]any{
				"from":   from.String(),
				"to":     to.String(),
				"reason": reason,
			},
		})
	})
}

func statusTimestampUpdates(to enums.OrderStatus, now time.Time) map[string]any {
	updates := map[string]any{}
	switch to {
	case enums.OrderStatusCreditReserved:
		updates["credit_reserved_at"] = now
	case enums.OrderStatusVendorNotified:
		updates["vendor_notified_at"] = now
	case enums.OrderStatusVendorAccepted, enums.OrderStatusVendorRejected:
		updates["vendor_decided_at"] = now
	case enums.OrderStatusFulfilled:
		updates["fulfilled_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	case enums.OrderStatusFailed:
		updates["failed_at"] = now
	}
	return updates
}

func applyStatusTimestamp(order *models.Order, to enums.OrderStatus, now time.Time) {
	switch to {
	case enums.OrderStatusCreditReserved:
		order.CreditReservedAt = &now
	case enums.OrderStatusVendorNotified:
		order.VendorNotifiedAt = &now
	case enums.OrderStatusVendorAccepted, enums.OrderStatusVendorRejected:
		order.VendorDecidedAt = &now
	case enums.OrderStatusFulfilled:
		order.FulfilledAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	case enums.OrderStatusFailed:
		order.FailedAt = &now
	}
}
