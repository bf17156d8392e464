package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/audit"
	"github.com/ordena-ai/ordena-backend/internal/ledger"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	dbpkg "github.com/ordena-ai/ordena-backend/pkg/db"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/metrics"
	"github.com/ordena-ai/ordena-backend/pkg/outbox"
	"github.com/ordena-ai/ordena-backend/pkg/outbox/payloads"
)

const (
	defaultLockAttempts  = 3
	defaultLockBaseDelay = 100 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Summary reports a credit line's standing. Available is what a new
// reservation may still draw: limit - balance - active holds.
type Summary struct {
	RelationshipID uuid.UUID       `json:"relationship_id"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	Balance        decimal.Decimal `json:"balance"`
	Reserved       decimal.Decimal `json:"reserved"`
	Available      decimal.Decimal `json:"available"`
	Blocked        bool            `json:"blocked"`
	BlockedReason  *string         `json:"blocked_reason,omitempty"`
}

// ReserveCreditInput identifies the order and the credit pair to hold against.
type ReserveCreditInput struct {
	RetailerStoreID   uuid.UUID
	WholesalerStoreID uuid.UUID
	OrderID           uuid.UUID
	Amount            decimal.Decimal
	ActorID           uuid.UUID
}

// RecordPaymentInput captures a retailer payment against outstanding balance.
type RecordPaymentInput struct {
	RetailerStoreID   uuid.UUID
	WholesalerStoreID uuid.UUID
	Amount            decimal.Decimal
	Reference         string
	ActorID           uuid.UUID
}

// SetCreditLimitInput configures or re-configures a credit line.
type SetCreditLimitInput struct {
	RetailerStoreID   uuid.UUID
	WholesalerStoreID uuid.UUID
	CreditLimit       decimal.Decimal
	ActorID           uuid.UUID
}

// Service defines credit lock, reservation, and ledger-facing operations.
type Service interface {
	ReserveCredit(ctx context.Context, input ReserveCreditInput) (*models.CreditReservation, error)
	ReleaseReservation(ctx context.Context, reservationID uuid.UUID, reason string) error
	ReleaseActiveByOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.CreditReservation, error)
	ReleaseActiveByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.CreditReservation, error)
	FinalizeReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.CreditReservation, error)
	AvailableCredit(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*Summary, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.LedgerEntry, error)
	SetCreditLimit(ctx context.Context, input SetCreditLimitInput) (*models.CreditRelationship, error)
	BlockRelationship(ctx context.Context, retailerID, wholesalerID, actorID uuid.UUID, reason string) error
	UnblockRelationship(ctx context.Context, retailerID, wholesalerID, actorID uuid.UUID) error
}

// ServiceParams configure the credit service.
type ServiceParams struct {
	Repo    Repository
	Ledger  ledger.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Audit   audit.Recorder
	Lock    config.CreditLockConfig
	Metrics *metrics.CreditLockMetrics
}

type service struct {
	repo        Repository
	ledgerRepo  ledger.Repository
	tx          txRunner
	outbox      outboxPublisher
	audit       audit.Recorder
	lockCfg     config.CreditLockConfig
	lockMetrics *metrics.CreditLockMetrics
}

// NewService builds a credit service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
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
	return &service{
		repo:        params.Repo,
		ledgerRepo:  params.Ledger,
		tx:          params.Tx,
		outbox:      params.Outbox,
		audit:       params.Audit,
		lockCfg:     params.Lock,
		lockMetrics: params.Metrics,
	}, nil
}

func (s *service) lockAttempts() int {
	if s.lockCfg.Attempts > 0 {
		return s.lockCfg.Attempts
	}
	return defaultLockAttempts
}

func (s *service) lockBaseDelay() time.Duration {
	if s.lockCfg.BaseDelay > 0 {
		return s.lockCfg.BaseDelay
	}
	return defaultLockBaseDelay
}

// ReserveCredit takes the relationship row lock, re-checks available credit
// inside it, and inserts the hold. The check and the insert share one
// transaction so no concurrent reservation can see stale availability. Lock
// contention (Postgres 55P03) is retried with doubling delays up to the
// configured attempt limit.
func (s *service) ReserveCredit(ctx context.Context, input ReserveCreditInput) (*models.CreditReservation, error) {
	if input.RetailerStoreID == uuid.Nil || input.WholesalerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler store ids required")
	}
	if input.OrderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "reservation amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}

	start := time.Now()
	attempts := s.lockAttempts()
	delay := s.lockBaseDelay()

	for attempt := 0; attempt < attempts; attempt++ {
		var reservation *models.CreditReservation
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			res, txErr := s.reserveInTx(ctx, tx, input)
			if txErr != nil {
				return txErr
			}
			reservation = res
			return nil
		})
		if err == nil {
			s.lockMetrics.IncAttempt("acquired")
			s.lockMetrics.ObserveWait("acquired", time.Since(start))
			s.lockMetrics.IncOutcome("reserved")
			return reservation, nil
		}
		if !dbpkg.IsLockNotAvailable(err) {
			s.recordReserveFailure(err)
			return nil, err
		}

		s.lockMetrics.IncAttempt("busy")
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	s.lockMetrics.ObserveWait("timeout", time.Since(start))
	s.lockMetrics.IncOutcome("lock_timeout")
	return nil, apperrors.New(apperrors.CodeLockTimeout, "credit relationship lock busy").
		WithDetails(map[string]any{
			"attempts": attempts,
			"order_id": input.OrderID.String(),
		})
}

func (s *service) recordReserveFailure(err error) {
	typed := apperrors.As(err)
	if typed == nil {
		s.lockMetrics.IncOutcome("error")
		return
	}
	switch typed.Code() {
	case apperrors.CodeInsufficientCredit:
		s.lockMetrics.IncOutcome("insufficient")
	case apperrors.CodeCreditBlocked:
		s.lockMetrics.IncOutcome("blocked")
	default:
		s.lockMetrics.IncOutcome("error")
	}
}

func (s *service) reserveInTx(ctx context.Context, tx *gorm.DB, input ReserveCreditInput) (*models.CreditReservation, error) {
	repo := s.repo.WithTx(tx)

	rel, err := repo.GetRelationshipForUpdate(ctx, input.RetailerStoreID, input.WholesalerStoreID)
	if err != nil {
		// Lock errors bubble raw so the retry loop can classify them.
		return nil, err
	}
	if rel == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no credit relationship for store pair")
	}
	if !rel.Active {
		details := map[string]any{}
		if rel.BlockedReason != nil {
			details["blocked_reason"] = *rel.BlockedReason
		}
		return nil, apperrors.New(apperrors.CodeCreditBlocked, "credit relationship is blocked").
			WithDetails(details)
	}

	existing, err := repo.FindActiveReservationByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "order already holds an active reservation").
			WithDetails(map[string]any{"reservation_id": existing.ID.String()})
	}

	available, err := s.availableInTx(ctx, tx, rel)
	if err != nil {
		return nil, err
	}
	if available.LessThan(input.Amount) {
		return nil, apperrors.New(apperrors.CodeInsufficientCredit, "requested amount exceeds available credit").
			WithDetails(map[string]any{
				"requested": input.Amount.String(),
				"available": available.String(),
				"shortfall": input.Amount.Sub(available).String(),
			})
	}

	reservation := &models.CreditReservation{
		RelationshipID: rel.ID,
		OrderID:        input.OrderID,
		Amount:         input.Amount,
		Status:         enums.ReservationStatusActive,
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventCreditReserved,
		AggregateType: enums.AggregateCreditReservation,
		AggregateID:   reservation.ID,
		Version:       1,
		Actor:         actorRef(input.ActorID),
		Data: payloads.CreditReservedEvent{
			ReservationID:   reservation.ID,
			OrderID:         input.OrderID,
			DebtorStoreID:   rel.DebtorStoreID,
			CreditorStoreID: rel.CreditorStoreID,
			Amount:          input.Amount,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return reservation, nil
}

// availableInTx recomputes limit - ledger balance - active holds using the
// tx-bound repositories, so the numbers are read under the row lock.
func (s *service) availableInTx(ctx context.Context, tx *gorm.DB, rel *models.CreditRelationship) (decimal.Decimal, error) {
	entries, err := s.ledgerRepo.WithTx(tx).ListByPair(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := ledger.Fold(entries)

	actives, err := s.repo.WithTx(tx).ListActiveReservations(ctx, rel.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return rel.CreditLimit.Sub(balance).Sub(sumReservations(actives)), nil
}

// ReleaseReservation returns an active hold to the pool. Releasing an
// already-released reservation is a no-op; releasing a converted one is a
// state conflict.
func (s *service) ReleaseReservation(ctx context.Context, reservationID uuid.UUID, reason string) error {
	if reservationID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "reservation id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		res, err := repo.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return apperrors.New(apperrors.CodeNotFound, "reservation not found")
		}
		switch res.Status {
		case enums.ReservationStatusReleased:
			return nil
		case enums.ReservationStatusConvertedToDebit:
			return apperrors.New(apperrors.CodeStateConflict, "reservation already converted to debt")
		}

		return s.releaseInTx(ctx, tx, res, reason)
	})
}

// ReleaseActiveByOrder releases the order's active hold if one exists.
// Returns (nil, nil) when there is nothing to release.
func (s *service) ReleaseActiveByOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.CreditReservation, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}

	var released *models.CreditReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.ReleaseActiveByOrderTx(ctx, tx, orderID, reason)
		if err != nil {
			return err
		}
		released = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// ReleaseActiveByOrderTx is the same release running inside the caller's
// transaction, so a cancel or fail transition and its credit release commit
// together.
func (s *service) ReleaseActiveByOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string) (*models.CreditReservation, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeDependency, "transaction required to release reservation")
	}
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}

	res, err := s.repo.WithTx(tx).FindActiveReservationByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	if err := s.releaseInTx(ctx, tx, res, reason); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) releaseInTx(ctx context.Context, tx *gorm.DB, res *models.CreditReservation, reason string) error {
	repo := s.repo.WithTx(tx)
	now := time.Now().UTC()
	updates := map[string]any{
		"released_at": now,
	}
	if reason != "" {
		updates["release_reason"] = reason
	}

	count, err := repo.TransitionReservation(ctx, res.ID, enums.ReservationStatusActive, enums.ReservationStatusReleased, updates)
	if err != nil {
		return err
	}
	if count == 0 {
		current, err := repo.GetReservation(ctx, res.ID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == enums.ReservationStatusReleased {
			return nil
		}
		return apperrors.New(apperrors.CodeStateConflict, "reservation is no longer active")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditReleased,
		AggregateType: enums.AggregateCreditReservation,
		AggregateID:   res.ID,
		Version:       1,
		Data: payloads.CreditReleasedEvent{
			ReservationID: res.ID,
			OrderID:       res.OrderID,
			Reason:        reason,
			ReleasedAt:    now,
		},
	})
}

// FinalizeReservation flips the order's active hold to CONVERTED_TO_DEBIT
// and appends the matching DEBIT ledger entry, all inside the caller's
// transaction so fulfillment and conversion commit together.
func (s *service) FinalizeReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.CreditReservation, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeDependency, "transaction required to finalize reservation")
	}
	if orderID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	res, err := repo.FindActiveReservationByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apperrors.New(apperrors.CodeCreditNotReserved, "no active reservation for order").
			WithDetails(map[string]any{"order_id": orderID.String()})
	}

	now := time.Now().UTC()
	count, err := repo.TransitionReservation(ctx, res.ID, enums.ReservationStatusActive, enums.ReservationStatusConvertedToDebit, map[string]any{
		"converted_at": now,
	})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.New(apperrors.CodeStateConflict, "reservation is no longer active")
	}

	rel, err := repo.GetRelationshipByID(ctx, res.RelationshipID)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, apperrors.New(apperrors.CodeDependency, "credit relationship missing for reservation")
	}

	entry := &models.LedgerEntry{
		DebtorStoreID:   rel.DebtorStoreID,
		CreditorStoreID: rel.CreditorStoreID,
		OrderID:         &res.OrderID,
		Type:            enums.LedgerEntryTypeDebit,
		Amount:          res.Amount,
	}
	if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditConverted,
		AggregateType: enums.AggregateCreditReservation,
		AggregateID:   res.ID,
		Version:       1,
		Data: payloads.CreditConvertedEvent{
			ReservationID: res.ID,
			OrderID:       res.OrderID,
			LedgerEntryID: entry.ID,
			Amount:        res.Amount,
		},
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// AvailableCredit reports the credit line's standing without locking.
// Callers that need the number to hold must go through ReserveCredit.
func (s *service) AvailableCredit(ctx context.Context, retailerID, wholesalerID uuid.UUID) (*Summary, error) {
	if retailerID == uuid.Nil || wholesalerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler store ids required")
	}

	rel, err := s.repo.GetRelationship(ctx, retailerID, wholesalerID)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "no credit relationship for store pair")
	}

	entries, err := s.ledgerRepo.ListByPair(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	if err != nil {
		return nil, err
	}
	balance := ledger.Fold(entries)

	actives, err := s.repo.ListActiveReservations(ctx, rel.ID)
	if err != nil {
		return nil, err
	}
	reserved := sumReservations(actives)

	return &Summary{
		RelationshipID: rel.ID,
		CreditLimit:    rel.CreditLimit,
		Balance:        balance,
		Reserved:       reserved,
		Available:      rel.CreditLimit.Sub(balance).Sub(reserved),
		Blocked:        !rel.Active,
		BlockedReason:  rel.BlockedReason,
	}, nil
}

// RecordPayment appends a CREDIT ledger entry: the retailer paying down
// balance. No row lock is needed; payments only grow availability.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.LedgerEntry, error) {
	if input.RetailerStoreID == uuid.Nil || input.WholesalerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler store ids required")
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.New(apperrors.CodeValidation, "payment amount must be positive").
			WithDetails(map[string]any{"amount": input.Amount.String()})
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}

	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rel, err := s.repo.WithTx(tx).GetRelationship(ctx, input.RetailerStoreID, input.WholesalerStoreID)
		if err != nil {
			return err
		}
		if rel == nil {
			return apperrors.New(apperrors.CodeNotFound, "no credit relationship for store pair")
		}

		row := &models.LedgerEntry{
			DebtorStoreID:   input.RetailerStoreID,
			CreditorStoreID: input.WholesalerStoreID,
			Type:            enums.LedgerEntryTypeCredit,
			Amount:          input.Amount,
		}
		if input.Reference != "" {
			ref := input.Reference
			row.Reference = &ref
		}
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         actorRef(input.ActorID),
			Data: payloads.PaymentRecordedEvent{
				LedgerEntryID:   row.ID,
				DebtorStoreID:   input.RetailerStoreID,
				CreditorStoreID: input.WholesalerStoreID,
				Amount:          input.Amount,
				Reference:       input.Reference,
			},
		}); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionPaymentRecorded,
			ActorID:    input.ActorID,
			EntityType: "ledger_entry",
			EntityID:   row.ID,
			Outcome:    audit.OutcomeApproved,
			Details: map[string]any{
				"amount":    input.Amount.String(),
				"reference": input.Reference,
			},
		}); err != nil {
			return err
		}

		entry = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SetCreditLimit creates the relationship on first use and updates the
// limit afterwards. Limit cuts do not touch existing reservations; they
// only constrain future ones.
func (s *service) SetCreditLimit(ctx context.Context, input SetCreditLimitInput) (*models.CreditRelationship, error) {
	if input.RetailerStoreID == uuid.Nil || input.WholesalerStoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "retailer and wholesaler store ids required")
	}
	if input.CreditLimit.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "credit limit cannot be negative")
	}
	if input.ActorID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}

	var out *models.CreditRelationship
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rel, err := repo.GetRelationship(ctx, input.RetailerStoreID, input.WholesalerStoreID)
		if err != nil {
			return err
		}
		if rel == nil {
			rel = &models.CreditRelationship{
				DebtorStoreID:   input.RetailerStoreID,
				CreditorStoreID: input.WholesalerStoreID,
				CreditLimit:     input.CreditLimit,
				Active:          true,
			}
			if err := repo.CreateRelationship(ctx, rel); err != nil {
				return err
			}
		} else {
			if err := repo.UpdateRelationship(ctx, rel.ID, map[string]any{
				"credit_limit": input.CreditLimit,
			}); err != nil {
				return err
			}
			rel.CreditLimit = input.CreditLimit
		}

		if err := s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionCreditLimitSet,
			ActorID:    input.ActorID,
			EntityType: "credit_relationship",
			EntityID:   rel.ID,
			Outcome:    audit.OutcomeApproved,
			Details:    map[string]any{"credit_limit": input.CreditLimit.String()},
		}); err != nil {
			return err
		}

		out = rel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BlockRelationship freezes new reservations on the credit line. Existing
// reservations and debt are untouched.
func (s *service) BlockRelationship(ctx context.Context, retailerID, wholesalerID, actorID uuid.UUID, reason string) error {
	return s.setBlocked(ctx, retailerID, wholesalerID, actorID, false, reason, enums.AuditActionCreditBlocked)
}

// UnblockRelationship re-enables reservations on the credit line.
func (s *service) UnblockRelationship(ctx context.Context, retailerID, wholesalerID, actorID uuid.UUID) error {
	return s.setBlocked(ctx, retailerID, wholesalerID, actorID, true, "", enums.AuditActionCreditUnblocked)
}

func (s *service) setBlocked(ctx context.Context, retailerID, wholesalerID, actorID uuid.UUID, active bool, reason string, action enums.AuditAction) error {
	if retailerID == uuid.Nil || wholesalerID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "retailer and wholesaler store ids required")
	}
	if actorID == uuid.Nil {
		return apperrors.New(apperrors.CodeUnauthorized, "actor identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rel, err := repo.GetRelationship(ctx, retailerID, wholesalerID)
		if err != nil {
			return err
		}
		if rel == nil {
			return apperrors.New(apperrors.CodeNotFound, "no credit relationship for store pair")
		}

		updates := map[string]any{"active": active}
		if active {
			updates["blocked_reason"] = nil
		} else {
			updates["blocked_reason"] = reason
		}
		if err := repo.UpdateRelationship(ctx, rel.ID, updates); err != nil {
			return err
		}

		details := map[string]any{}
		if reason != "" {
			details["reason"] = reason
		}
		return s.audit.Record(ctx, tx, audit.RecordInput{
			Action:     action,
			ActorID:    actorID,
			EntityType: "credit_relationship",
			EntityID:   rel.ID,
			Outcome:    audit.OutcomeApproved,
			Details:    details,
		})
	})
}

func sumReservations(rows []models.CreditReservation) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	return total
}

func actorRef(actorID uuid.UUID) *outbox.ActorRef {
	if actorID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actorID}
}
