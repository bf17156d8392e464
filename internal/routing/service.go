package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	dbtypes "github.com/ordena-ai/ordena-backend/pkg/db/types"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderMachine is the slice of the order service routing drives. Routing never
// writes order status itself; every move goes through the state machine.
type orderMachine interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

// vendorDirectory answers which wholesalers a broadcast may target.
type vendorDirectory interface {
	FindEligibleVendors(ctx context.Context, category enums.ProductCategory) ([]models.Store, error)
}

// Service runs the vendor broadcast: one routing per order, first acceptance
// wins, losers get cancellation notices.
type Service interface {
	RouteOrder(ctx context.Context, input RouteOrderInput) (*RoutingView, error)
	Respond(ctx context.Context, input VendorResponseInput) (*AcceptDecision, error)
	GetRoutingStatus(ctx context.Context, orderID uuid.UUID) (*RoutingView, error)
	SendAutoCancellations(ctx context.Context, routingID uuid.UUID) (int, error)
	CancelForOrder(ctx context.Context, orderID uuid.UUID) error
}

// ServiceParams configure the routing service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Orders  orderMachine
	Vendors vendorDirectory
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	orders  orderMachine
	vendors vendorDirectory
}

// NewService builds a routing service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("routing repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order machine required")
	}
	if params.Vendors == nil {
		return nil, fmt.Errorf("vendor directory required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		orders:  params.Orders,
		vendors: params.Vendors,
	}, nil
}

// RouteOrder opens the broadcast: snapshots the eligible vendors, then moves
// the order to vendor_notified. The routing row is compensated away if the
// transition loses a concurrent race.
func (s *service) RouteOrder(ctx context.Context, input RouteOrderInput) (*RoutingView, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.FindByOrderID(ctx, order.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "order already has a routing").
			WithDetails(map[string]any{"routing_id": existing.ID.String()})
	}
	if !orders.CanTransition(order.Status, enums.OrderStatusVendorNotified) {
		return nil, apperrors.New(apperrors.CodeStateConflict, "order cannot be routed from its current state").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	vendors, err := s.vendors.FindEligibleVendors(ctx, order.Category)
	if err != nil {
		return nil, err
	}
	if len(vendors) == 0 {
		return nil, apperrors.New(apperrors.CodeStateConflict, "no eligible vendors for category").
			WithDetails(map[string]any{"category": order.Category.String()})
	}

	eligible := make(dbtypes.UUIDArray, 0, len(vendors))
	for _, vendor := range vendors {
		eligible = append(eligible, vendor.ID)
	}
	routing := &models.VendorRouting{
		OrderID:         order.ID,
		RetailerStoreID: order.RetailerStoreID,
		Category:        order.Category,
		Status:          enums.RoutingStatusPendingResponses,
		EligibleVendors: eligible,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRouting(ctx, routing); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoutingBroadcast,
			AggregateType: enums.AggregateVendorRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.RoutingBroadcastEvent{
				RoutingID:       routing.ID,
				OrderID:         order.ID,
				RetailerStoreID: order.RetailerStoreID,
				Category:        order.Category,
				EligibleVendors: eligible,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.orders.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusVendorNotified,
		ActorID: input.ActorID,
	}); err != nil {
		// The order moved under us; the broadcast must not stay open.
		_, _ = s.repo.CancelRouting(ctx, routing.ID)
		return nil, err
	}
	return s.view(routing, nil), nil
}

// Respond records one vendor's answer. An acceptance enters the winner race;
// a rejection may close the routing when every eligible vendor has declined.
func (s *service) Respond(ctx context.Context, input VendorResponseInput) (*AcceptDecision, error) {
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	if input.VendorStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "vendor store id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Response.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid vendor response")
	}

	routing, err := s.repo.FindByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if routing == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no routing for order")
	}
	if !s.isEligible(routing, input.VendorStoreID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "vendor was not offered this order")
	}
	if routing.Status == enums.RoutingStatusCancelled {
		return nil, apperrors.New(apperrors.CodeStateConflict, "routing is cancelled")
	}

	if input.Response == enums.VendorResponseAccepted {
		return s.accept(ctx, routing, input)
	}
	return s.reject(ctx, routing, input)
}

// accept races the conditional winner update. The response row and the winner
// swap commit together; losing the race still records the response.
func (s *service) accept(ctx context.Context, routing *models.VendorRouting, input VendorResponseInput) (*AcceptDecision, error) {
	now := time.Now().UTC()
	var won bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateResponse(ctx, &models.VendorResponse{
			RoutingID:     routing.ID,
			VendorStoreID: input.VendorStoreID,
			Response:      enums.VendorResponseAccepted,
			Note:          input.Note,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorResponded,
			AggregateType: enums.AggregateVendorRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.VendorRespondedEvent{
				RoutingID:     routing.ID,
				OrderID:       routing.OrderID,
				VendorStoreID: input.VendorStoreID,
				Response:      enums.VendorResponseAccepted,
			},
		}); err != nil {
			return err
		}

		count, err := repo.AcceptWinner(ctx, routing.ID, input.VendorStoreID, now)
		if err != nil {
			return err
		}
		won = count == 1
		if !won {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorAccepted,
			AggregateType: enums.AggregateVendorRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.VendorAcceptedEvent{
				RoutingID:     routing.ID,
				OrderID:       routing.OrderID,
				WinnerStoreID: input.VendorStoreID,
				AcceptedAt:    now,
			},
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return s.duplicateResponse(ctx, routing, input.VendorStoreID)
		}
		return nil, err
	}

	if !won {
		current, err := s.repo.FindByID(ctx, routing.ID)
		if err != nil {
			return nil, err
		}
		decision := &AcceptDecision{RoutingID: routing.ID, OrderID: routing.OrderID, Reason: ReasonLostRace}
		if current != nil {
			decision.WinnerStoreID = current.WinnerStoreID
		}
		return decision, nil
	}

	if _, err := s.orders.Transition(ctx, orders.TransitionInput{
		OrderID:           routing.OrderID,
		To:                enums.OrderStatusVendorAccepted,
		ActorID:           input.ActorID,
		WholesalerStoreID: &input.VendorStoreID,
	}); err != nil {
		return nil, err
	}

	// Losers who already said yes get told the order is gone.
	if _, err := s.SendAutoCancellations(ctx, routing.ID); err != nil {
		return nil, err
	}

	winnerID := input.VendorStoreID
	return &AcceptDecision{
		RoutingID:     routing.ID,
		OrderID:       routing.OrderID,
		Accepted:      true,
		WinnerStoreID: &winnerID,
	}, nil
}

// duplicateResponse resolves a repeated answer: the standing winner gets an
// idempotent yes, anyone else a conflict.
func (s *service) duplicateResponse(ctx context.Context, routing *models.VendorRouting, vendorStoreID uuid.UUID) (*AcceptDecision, error) {
	current, err := s.repo.FindByID(ctx, routing.ID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.WinnerStoreID != nil && *current.WinnerStoreID == vendorStoreID {
		return &AcceptDecision{
			RoutingID:     routing.ID,
			OrderID:       routing.OrderID,
			Accepted:      true,
			AlreadyWinner: true,
			WinnerStoreID: current.WinnerStoreID,
		}, nil
	}
	return nil, apperrors.New(apperrors.CodeConflict, "vendor already responded to this routing")
}

func (s *service) reject(ctx context.Context, routing *models.VendorRouting, input VendorResponseInput) (*AcceptDecision, error) {
	if routing.Status != enums.RoutingStatusPendingResponses {
		return nil, apperrors.New(apperrors.CodeStateConflict, "routing is no longer accepting responses")
	}

	allRejected := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.CreateResponse(ctx, &models.VendorResponse{
			RoutingID:     routing.ID,
			VendorStoreID: input.VendorStoreID,
			Response:      enums.VendorResponseRejected,
			Note:          input.Note,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorResponded,
			AggregateType: enums.AggregateVendorRouting,
			AggregateID:   routing.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID},
			Data: payloads.VendorRespondedEvent{
				RoutingID:     routing.ID,
				OrderID:       routing.OrderID,
				VendorStoreID: input.VendorStoreID,
				Response:      enums.VendorResponseRejected,
			},
		}); err != nil {
			return err
		}

		responses, err := repo.ListResponses(ctx, routing.ID)
		if err != nil {
			return err
		}
		if !everyVendorRejected(routing.EligibleVendors, responses) {
			return nil
		}
		count, err := repo.CancelRouting(ctx, routing.ID)
		if err != nil {
			return err
		}
		allRejected = count == 1
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.New(apperrors.CodeConflict, "vendor already responded to this routing")
		}
		return nil, err
	}

	if allRejected {
		reason := "all vendors rejected"
		if _, err := s.orders.Transition(ctx, orders.TransitionInput{
			OrderID: routing.OrderID,
			To:      enums.OrderStatusVendorRejected,
			ActorID: input.ActorID,
			Reason:  &reason,
		}); err != nil {
			return nil, err
		}
	}
	return &AcceptDecision{RoutingID: routing.ID, OrderID: routing.OrderID}, nil
}

func (s *service) GetRoutingStatus(ctx context.Context, orderID uuid.UUID) (*RoutingView, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	routing, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if routing == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no routing for order")
	}
	return s.view(routing, routing.Responses), nil
}

// SendAutoCancellations notifies every losing vendor that accepted. Each
// notice is stamped so a repeated sweep never re-sends it.
func (s *service) SendAutoCancellations(ctx context.Context, routingID uuid.UUID) (int, error) {
	routing, err := s.repo.FindByID(ctx, routingID)
	if err != nil {
		return 0, err
	}
	if routing == nil {
		return 0, apperrors.New(apperrors.CodeNotFound, "routing not found")
	}
	if routing.Status != enums.RoutingStatusVendorAccepted || routing.WinnerStoreID == nil {
		return 0, nil
	}

	sent := 0
	now := time.Now().UTC()
	for _, response := range routing.Responses {
		if response.Response != enums.VendorResponseAccepted {
			continue
		}
		if response.VendorStoreID == *routing.WinnerStoreID {
			continue
		}
		if response.CancellationSentAt != nil {
			continue
		}
		response := response
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.MarkCancellationSent(ctx, response.ID, now); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRoutingCancellation,
				AggregateType: enums.AggregateVendorRouting,
				AggregateID:   routing.ID,
				Version:       1,
				Data: payloads.RoutingCancellationEvent{
					RoutingID:     routing.ID,
					OrderID:       routing.OrderID,
					VendorStoreID: response.VendorStoreID,
					WinnerStoreID: *routing.WinnerStoreID,
				},
			})
		})
		if err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// CancelForOrder closes an open broadcast, typically when the order itself is
// cancelled or times out. A routing already decided is left untouched.
func (s *service) CancelForOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id required")
	}
	routing, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if routing == nil {
		return nil
	}
	_, err = s.repo.CancelRouting(ctx, routing.ID)
	return err
}

func (s *service) isEligible(routing *models.VendorRouting, vendorStoreID uuid.UUID) bool {
	for _, id := range routing.EligibleVendors {
		if id == vendorStoreID {
			return true
		}
	}
	return false
}

func everyVendorRejected(eligible dbtypes.UUIDArray, responses []models.VendorResponse) bool {
	rejected := make(map[uuid.UUID]bool, len(responses))
	for _, response := range responses {
		if response.Response == enums.VendorResponseRejected {
			rejected[response.VendorStoreID] = true
		}
	}
	for _, id := range eligible {
		if !rejected[id] {
			return false
		}
	}
	return true
}

func (s *service) view(routing *models.VendorRouting, responses []models.VendorResponse) *RoutingView {
	view := &RoutingView{
		RoutingID:       routing.ID,
		OrderID:         routing.OrderID,
		Status:          routing.Status,
		EligibleVendors: routing.EligibleVendors,
		WinnerStoreID:   routing.WinnerStoreID,
		AcceptedAt:      routing.AcceptedAt,
		Responses:       make([]ResponseView, 0, len(responses)),
		CreatedAt:       routing.CreatedAt,
	}
	for _, response := range responses {
		view.Responses = append(view.Responses, ResponseView{
			VendorStoreID: response.VendorStoreID,
			Response:      response.Response,
			Note:          response.Note,
			CreatedAt:     response.CreatedAt,
		})
	}
	return view
}
