package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Repository manages persistence for credit relationships and reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateRelationship(ctx context.Context, rel *models.CreditRelationship) error
	GetRelationship(ctx context.Context, debtorID, creditorID uuid.UUID) (*models.CreditRelationship, error)
	GetRelationshipByID(ctx context.Context, id uuid.UUID) (*models.CreditRelationship, error)
	GetRelationshipForUpdate(ctx context.Context, debtorID, creditorID uuid.UUID) (*models.CreditRelationship, error)
	UpdateRelationship(ctx context.Context, id uuid.UUID, updates map[string]any) error

	CreateReservation(ctx context.Context, res *models.CreditReservation) error
	GetReservation(ctx context.Context, id uuid.UUID) (*models.CreditReservation, error)
	FindActiveReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error)
	ListActiveReservations(ctx context.Context, relationshipID uuid.UUID) ([]models.CreditReservation, error)
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, updates map[string]any) (int64, error)
	ListActiveReservationsBefore(ctx context.Context, cutoff time.Time) ([]models.CreditReservation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRelationship(ctx context.Context, rel *models.CreditRelationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(rel).Error
}

func (r *repository) GetRelationship(ctx context.Context, debtorID, creditorID uuid.UUID) (*models.CreditRelationship, error) {
	var rel models.CreditRelationship
	err := r.db.WithContext(ctx).
		Where("debtor_store_id = ? AND creditor_store_id = ?", debtorID, creditorID).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

func (r *repository) GetRelationshipByID(ctx context.Context, id uuid.UUID) (*models.CreditRelationship, error) {
	var rel models.CreditRelationship
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

// GetRelationshipForUpdate takes the relationship row lock. Under Postgres
// it uses FOR UPDATE NOWAIT so a held lock surfaces immediately as 55P03
// instead of queueing; sqlite serializes on its single writer, so the
// locking clause is skipped there.
func (r *repository) GetRelationshipForUpdate(ctx context.Context, debtorID, creditorID uuid.UUID) (*models.CreditRelationship, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
	}

	var rel models.CreditRelationship
	err := q.Where("debtor_store_id = ? AND creditor_store_id = ?", debtorID, creditorID).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rel, nil
}

func (r *repository) UpdateRelationship(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CreditRelationship{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateReservation(ctx context.Context, res *models.CreditReservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *repository) GetReservation(ctx context.Context, id uuid.UUID) (*models.CreditReservation, error) {
	var res models.CreditReservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *repository) FindActiveReservationByOrder(ctx context.Context, orderID uuid.UUID) (*models.CreditReservation, error) {
	var res models.CreditReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusActive).
		First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

func (r *repository) ListActiveReservations(ctx context.Context, relationshipID uuid.UUID) ([]models.CreditReservation, error) {
	var rows []models.CreditReservation
	if err := r.db.WithContext(ctx).
		Where("relationship_id = ? AND status = ?", relationshipID, enums.ReservationStatusActive).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionReservation performs a compare-and-swap on the reservation
// status. The returned count is zero when the row was not in the expected
// state, which callers treat as "someone else got here first".
func (r *repository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).
		Model(&models.CreditReservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) ListActiveReservationsBefore(ctx context.Context, cutoff time.Time) ([]models.CreditReservation, error) {
	var rows []models.CreditReservation
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.ReservationStatusActive, cutoff).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
