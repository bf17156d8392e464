package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL,
  retailer_store_id TEXT NOT NULL,
  wholesaler_store_id TEXT,
  category TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'created',
  total_amount NUMERIC NOT NULL,
  notes TEXT,
  credit_reserved_at DATETIME,
  vendor_notified_at DATETIME,
  vendor_decided_at DATETIME,
  fulfilled_at DATETIME,
  cancelled_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  qty INTEGER NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME
);`
	events := `
CREATE TABLE IF NOT EXISTS order_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  reason TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	for _, schema := range []string{orders, lineItems, events} {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

func seedOrderRow(t *testing.T, repo Repository, retailerID uuid.UUID, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		RetailerStoreID: retailerID,
		Category:        enums.ProductCategoryBeverages,
		Currency:        enums.CurrencyUSD,
		Status:          status,
		TotalAmount:     decimal.RequireFromString("75.00"),
		CreatedAt:       createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestRepository_OrderNumberSequence(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	retailerID := uuid.New()

	first := seedOrderRow(t, repo, retailerID, enums.OrderStatusCreated, time.Now().UTC())
	second := seedOrderRow(t, repo, retailerID, enums.OrderStatusCreated, time.Now().UTC())

	assert.Equal(t, int64(1001), first.OrderNumber)
	assert.Equal(t, int64(1002), second.OrderNumber)
}

func TestRepository_CreateKeepsAssignedNumber(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		OrderNumber:     4242,
		RetailerStoreID: uuid.New(),
		Category:        enums.ProductCategoryBeverages,
		Currency:        enums.CurrencyUSD,
		Status:          enums.OrderStatusCreated,
		TotalAmount:     decimal.RequireFromString("10.00"),
	}
	require.NoError(t, repo.Create(ctx, order))
	assert.Equal(t, int64(4242), order.OrderNumber)

	loaded, err := repo.Find(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), loaded.OrderNumber)
}

func TestRepository_FindPreloadsItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, time.Now().UTC())
	require.NoError(t, repo.CreateLineItems(ctx, []models.OrderLineItem{
		{
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Name:      "Cola 24-pack",
			Unit:      enums.ProductUnitCase,
			UnitPrice: decimal.RequireFromString("18.50"),
			Qty:       4,
			Total:     decimal.RequireFromString("74.00"),
		},
	}))

	loaded, err := repo.Find(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Cola 24-pack", loaded.Items[0].Name)

	missing, err := repo.Find(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_UpdateStatusCompareAndSet(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, time.Now().UTC())

	count, err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusValidated, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Second writer still holding the stale expectation loses.
	count, err = repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	loaded, err := repo.Find(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusValidated, loaded.Status)
}

func TestRepository_EventHistory(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, time.Now().UTC())
	actorID := uuid.New()
	steps := []enums.OrderStatus{
		enums.OrderStatusValidated,
		enums.OrderStatusCreditReserved,
		enums.OrderStatusVendorNotified,
	}
	from := enums.OrderStatusCreated
	for _, to := range steps {
		require.NoError(t, repo.CreateEvent(ctx, &models.OrderEvent{
			OrderID:    order.ID,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    actorID,
		}))
		from = to
	}

	events, err := repo.ListEvents(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, to := range steps {
		assert.Equal(t, to, events[i].ToStatus)
	}

	reserved, err := repo.HasTransitionTo(ctx, order.ID, enums.OrderStatusCreditReserved)
	require.NoError(t, err)
	assert.True(t, reserved)

	fulfilled, err := repo.HasTransitionTo(ctx, order.ID, enums.OrderStatusFulfilled)
	require.NoError(t, err)
	assert.False(t, fulfilled)
}

func TestRepository_ListByStatusBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	stale := seedOrderRow(t, repo, uuid.New(), enums.OrderStatusVendorNotified, now.Add(-48*time.Hour))
	seedOrderRow(t, repo, uuid.New(), enums.OrderStatusVendorNotified, now)
	seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, now.Add(-48*time.Hour))

	rows, err := repo.ListByStatusBefore(ctx, enums.OrderStatusVendorNotified, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestRepository_ListByRetailerPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	retailerID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedOrderRow(t, repo, retailerID, enums.OrderStatusCreated, base.Add(time.Duration(i)*time.Minute))
	}
	seedOrderRow(t, repo, uuid.New(), enums.OrderStatusCreated, base)

	page, err := repo.ListByRetailer(ctx, retailerID, pagination.Params{Limit: 2}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)
	// Newest first.
	assert.True(t, page.Orders[0].CreatedAt.After(page.Orders[1].CreatedAt))

	seen := map[uuid.UUID]bool{}
	for _, row := range page.Orders {
		seen[row.ID] = true
	}

	next, err := repo.ListByRetailer(ctx, retailerID, pagination.Params{Limit: 2, Cursor: page.NextCursor}, OrderFilters{})
	require.NoError(t, err)
	require.Len(t, next.Orders, 2)
	for _, row := range next.Orders {
		assert.False(t, seen[row.ID], "page overlap at %s", row.ID)
	}
}

func TestRepository_ListFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	retailerID := uuid.New()
	now := time.Now().UTC()
	cancelled := seedOrderRow(t, repo, retailerID, enums.OrderStatusCancelled, now.Add(-time.Minute))
	seedOrderRow(t, repo, retailerID, enums.OrderStatusCreated, now)

	status := enums.OrderStatusCancelled
	page, err := repo.ListByRetailer(ctx, retailerID, pagination.Params{}, OrderFilters{Status: &status})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, cancelled.ID, page.Orders[0].ID)
}
