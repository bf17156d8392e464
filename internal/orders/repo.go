package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

const firstOrderNumber = 1000

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	db := r.db.WithContext(ctx)
	if order.OrderNumber != 0 {
		return db.Omit("Items").Create(order).Error
	}
	if r.db.Dialector.Name() == "postgres" {
		// order_number_seq assigns the number atomically; read it back so
		// callers see what the database chose.
		if err := db.Omit("Items", "OrderNumber").Create(order).Error; err != nil {
			return err
		}
		return db.Model(&models.Order{}).
			Select("order_number").
			Where("id = ?", order.ID).
			Scan(&order.OrderNumber).Error
	}
	// sqlite has no sequences; its single writer serializes this window.
	var max int64
	err := db.Model(&models.Order{}).
		Select("COALESCE(MAX(order_number), ?)", firstOrderNumber).
		Scan(&max).Error
	if err != nil {
		return err
	}
	order.OrderNumber = max + 1
	return db.Omit("Items").Create(order).Error
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) Find(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus performs the compare-and-set: the row moves only if its status
// still equals the expected from state. Zero rows affected means a concurrent
// transition won.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (int64, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) CreateEvent(ctx context.Context, event *models.OrderEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) HasTransitionTo(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderEvent{}).
		Where("order_id = ? AND to_status = ?", orderID, to).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByStatusBefore(ctx context.Context, status enums.OrderStatus, cutoff time.Time) ([]models.Order, error) {
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, cutoff).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByRetailer(ctx context.Context, retailerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	return r.list(ctx, "retailer_store_id = ?", retailerStoreID, params, filters)
}

func (r *repository) ListByWholesaler(ctx context.Context, wholesalerStoreID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	return r.list(ctx, "wholesaler_store_id = ?", wholesalerStoreID, params, filters)
}

func (r *repository) list(ctx context.Context, ownerClause string, ownerID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Where(ownerClause, ownerID)

	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Category != nil {
		q = q.Where("category = ?", *filters.Category)
	}
	if filters.DateFrom != nil {
		q = q.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		q = q.Where("created_at <= ?", *filters.DateTo)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := q.Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &OrderList{Orders: make([]OrderSummary, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, OrderSummary{
			ID:                row.ID,
			OrderNumber:       row.OrderNumber,
			RetailerStoreID:   row.RetailerStoreID,
			WholesalerStoreID: row.WholesalerStoreID,
			Category:          row.Category,
			Status:            row.Status,
			Currency:          row.Currency,
			TotalAmount:       row.TotalAmount,
			TotalItems:        len(row.Items),
			CreatedAt:         row.CreatedAt,
		})
	}
	return list, nil
}
