package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
)

// Repository manages persistence for admin audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.AdminAuditLog) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AdminAuditLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, row *models.AdminAuditLog) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]models.AdminAuditLog, error) {
	var rows []models.AdminAuditLog
	if err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
