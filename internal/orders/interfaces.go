package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error)
	CreateEvent(ctx context.Context, event *models.OrderEvent) error
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
	HasTransitionTo(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error)
	ListByStatusBefore(ctx context.Context, status enums.OrderStatus, cutoff time.Time) ([]models.Order, error)
	ListByRetailer(ctx context.Context, retailerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListByWholesaler(ctx context.Context, wholesalerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
}
