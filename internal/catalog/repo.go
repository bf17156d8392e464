package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Repository manages persistence for catalog products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	Find(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListByCategory(ctx context.Context, category enums.ProductCategory) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListByCategory(ctx context.Context, category enums.ProductCategory) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		Order("title ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
