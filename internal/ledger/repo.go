package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
)

// Repository manages persistence for ledger entries. There is no update or
// delete path; the table is append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	ListByPair(ctx context.Context, debtorID, creditorID uuid.UUID) ([]models.LedgerEntry, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByPair(ctx context.Context, debtorID, creditorID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("debtor_store_id = ? AND creditor_store_id = ?", debtorID, creditorID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
