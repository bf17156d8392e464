package stores

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Repository handles store persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, store *models.Store) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListActiveByTypeAndCategory(ctx context.Context, storeType enums.StoreType, category enums.ProductCategory) ([]models.Store, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, store *models.Store) error {
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).Where("owner = ?", ownerID).Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListActiveByTypeAndCategory is the routing eligibility query: active,
// KYC-verified stores of the given type covering the category. The category
// match runs in Go rather than with the Postgres array operator so the same
// query serves the sqlite tests.
func (r *repository) ListActiveByTypeAndCategory(ctx context.Context, storeType enums.StoreType, category enums.ProductCategory) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).
		Where("type = ? AND active = ? AND kyc_status = ?", storeType, true, enums.KYCStatusVerified).
		Order("company_name ASC").
		Find(&stores).Error; err != nil {
		return nil, err
	}

	matched := stores[:0]
	for _, store := range stores {
		for _, c := range store.Categories {
			if c == category.String() {
				matched = append(matched, store)
				break
			}
		}
	}
	return matched, nil
}
