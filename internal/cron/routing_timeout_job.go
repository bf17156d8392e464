package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/internal/routing"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
)

const defaultRoutingTimeoutHours = 24

type staleOrderReader interface {
	ListByStatusBefore(ctx context.Context, status enums.OrderStatus, cutoff time.Time) ([]models.Order, error)
}

type orderFailer interface {
	Transition(ctx context.Context, input orders.TransitionInput) (*models.Order, error)
}

type routingCloser interface {
	GetRoutingStatus(ctx context.Context, orderID uuid.UUID) (*routing.RoutingView, error)
	CancelForOrder(ctx context.Context, orderID uuid.UUID) error
}

// RoutingTimeoutJobParams configure the unanswered-broadcast sweep.
type RoutingTimeoutJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Orders       staleOrderReader
	Machine      orderFailer
	Routing      routingCloser
	Outbox       outboxEmitter
	SystemActor  uuid.UUID
	TimeoutHours int
}

// NewRoutingTimeoutJob builds the cron job that fails orders no vendor ever
// answered.
func NewRoutingTimeoutJob(params RoutingTimeoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("order machine required")
	}
	if params.Routing == nil {
		return nil, fmt.Errorf("routing service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.SystemActor == uuid.Nil {
		return nil, fmt.Errorf("system actor required")
	}
	timeout := params.TimeoutHours
	if timeout <= 0 {
		timeout = defaultRoutingTimeoutHours
	}
	return &routingTimeoutJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		machine:     params.Machine,
		routing:     params.Routing,
		outbox:      params.Outbox,
		systemActor: params.SystemActor,
		timeout:     timeout,
		now:         time.Now,
	}, nil
}

type routingTimeoutJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      staleOrderReader
	machine     orderFailer
	routing     routingCloser
	outbox      outboxEmitter
	systemActor uuid.UUID
	timeout     int
	now         func() time.Time
}

func (j *routingTimeoutJob) Name() string { return "routing-timeout" }

func (j *routingTimeoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.timeout) * time.Hour)
	stale, err := j.orders.ListByStatusBefore(ctx, enums.OrderStatusVendorNotified, cutoff)
	if err != nil {
		return fmt.Errorf("query unanswered orders: %w", err)
	}

	var errs []error
	failed := 0
	for _, order := range stale {
		if err := j.timeOut(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("time out order %s: %w", order.ID, err))
			continue
		}
		failed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"timeout_hours": j.timeout,
		"failed_orders": failed,
		"errors":        len(errs),
	})
	j.logg.Info(logCtx, "routing timeout sweep complete")
	return multierr.Combine(errs...)
}

func (j *routingTimeoutJob) timeOut(ctx context.Context, order models.Order) error {
	var routingID uuid.UUID
	view, err := j.routing.GetRoutingStatus(ctx, order.ID)
	if err != nil {
		// Direct orders notify their wholesaler without a broadcast row.
		if typed := apperrors.As(err); typed == nil || typed.Code() != apperrors.CodeNotFound {
			return err
		}
	} else {
		routingID = view.RoutingID
		if err := j.routing.CancelForOrder(ctx, order.ID); err != nil {
			return err
		}
	}

	reason := "no vendor response before timeout"
	if _, err := j.machine.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusFailed,
		ActorID: j.systemActor,
		Reason:  &reason,
	}); err != nil {
		// A concurrent acceptance or cancel got there first.
		if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeStateConflict {
			return nil
		}
		return err
	}

	timedOutAt := j.now().UTC()
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRoutingTimeout,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    timedOutAt,
			Data: payloads.OrderRoutingTimeoutEvent{
				OrderID:    order.ID,
				RoutingID:  routingID,
				TimedOutAt: timedOutAt,
			},
		})
	})
}
