package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
)

const defaultReservationTTLHours = 72

type staleReservationReader interface {
	ListActiveReservationsBefore(ctx context.Context, cutoff time.Time) ([]models.CreditReservation, error)
}

// ReservationExpiryJobParams configure the stale-hold sweep.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Reservations staleReservationReader
	Machine      orderFailer
	Outbox       outboxEmitter
	SystemActor  uuid.UUID
	TTLHours     int
}

// NewReservationExpiryJob builds the cron job that cancels orders whose credit
// holds outlived the TTL. Cancelling through the state machine releases the
// hold in the same transaction as the status swap.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation reader required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("order machine required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.SystemActor == uuid.Nil {
		return nil, fmt.Errorf("system actor required")
	}
	ttl := params.TTLHours
	if ttl <= 0 {
		ttl = defaultReservationTTLHours
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		db:           params.DB,
		reservations: params.Reservations,
		machine:      params.Machine,
		outbox:       params.Outbox,
		systemActor:  params.SystemActor,
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	db           txRunner
	reservations staleReservationReader
	machine      orderFailer
	outbox       outboxEmitter
	systemActor  uuid.UUID
	ttl          int
	now          func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.ttl) * time.Hour)
	stale, err := j.reservations.ListActiveReservationsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale reservations: %w", err)
	}

	var errs []error
	released := 0
	for _, reservation := range stale {
		if err := j.expire(ctx, reservation); err != nil {
			errs = append(errs, fmt.Errorf("expire reservation %s: %w", reservation.ID, err))
			continue
		}
		released++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"ttl_hours": j.ttl,
		"released":  released,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return multierr.Combine(errs...)
}

func (j *reservationExpiryJob) expire(ctx context.Context, reservation models.CreditReservation) error {
	reason := "credit reservation expired"
	if _, err := j.machine.Transition(ctx, orders.TransitionInput{
		OrderID: reservation.OrderID,
		To:      enums.OrderStatusCancelled,
		ActorID: j.systemActor,
		Reason:  &reason,
	}); err != nil {
		// The order reached a terminal state, or a concurrent transition
		// already dealt with the hold.
		if typed := apperrors.As(err); typed != nil && typed.Code() == apperrors.CodeStateConflict {
			return nil
		}
		return err
	}

	expiredAt := j.now().UTC()
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationExpired,
			AggregateType: enums.AggregateCreditReservation,
			AggregateID:   reservation.ID,
			Version:       1,
			OccurredAt:    expiredAt,
			Data: payloads.ReservationExpiredEvent{
				ReservationID: reservation.ID,
				OrderID:       reservation.OrderID,
				ExpiredAt:     expiredAt,
			},
		})
	})
}
