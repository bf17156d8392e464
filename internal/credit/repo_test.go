package credit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/internal/ledger"
	"github.com/ordena-ai/ordena-backend/pkg/config"
	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
)

func setupCreditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS credit_relationships (
  id TEXT PRIMARY KEY,
  debtor_store_id TEXT NOT NULL,
  creditor_store_id TEXT NOT NULL,
  credit_limit NUMERIC NOT NULL,
  active BOOLEAN NOT NULL DEFAULT true,
  blocked_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uq_credit_pair UNIQUE (debtor_store_id, creditor_store_id)
);
CREATE TABLE IF NOT EXISTS credit_reservations (
  id TEXT PRIMARY KEY,
  relationship_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  release_reason TEXT,
  released_at DATETIME,
  converted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  debtor_store_id TEXT NOT NULL,
  creditor_store_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  reference TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedRelationship(t *testing.T, repo Repository, limit string) *models.CreditRelationship {
	t.Helper()

	rel := &models.CreditRelationship{
		DebtorStoreID:   uuid.New(),
		CreditorStoreID: uuid.New(),
		CreditLimit:     decimal.RequireFromString(limit),
		Active:          true,
	}
	require.NoError(t, repo.CreateRelationship(context.Background(), rel))
	return rel
}

func TestRepository_RelationshipLookups(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "5000.00")

	found, err := repo.GetRelationship(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rel.ID, found.ID)

	// Direction matters: the reverse pair is a different credit line.
	reverse, err := repo.GetRelationship(ctx, rel.CreditorStoreID, rel.DebtorStoreID)
	require.NoError(t, err)
	assert.Nil(t, reverse)

	locked, err := repo.GetRelationshipForUpdate(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, rel.ID, locked.ID)

	missing, err := repo.GetRelationshipForUpdate(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_DuplicatePairRejected(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")

	dup := &models.CreditRelationship{
		DebtorStoreID:   rel.DebtorStoreID,
		CreditorStoreID: rel.CreditorStoreID,
		CreditLimit:     decimal.NewFromInt(99),
		Active:          true,
	}
	require.Error(t, repo.CreateRelationship(ctx, dup))
}

func TestRepository_TransitionReservationCAS(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")
	res := &models.CreditReservation{
		RelationshipID: rel.ID,
		OrderID:        uuid.New(),
		Amount:         decimal.RequireFromString("400.00"),
		Status:         enums.ReservationStatusActive,
	}
	require.NoError(t, repo.CreateReservation(ctx, res))

	now := time.Now().UTC()
	count, err := repo.TransitionReservation(ctx, res.ID, enums.ReservationStatusActive, enums.ReservationStatusReleased, map[string]any{
		"released_at":    now,
		"release_reason": "order cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// The row is no longer active, so the same swap affects nothing.
	count, err = repo.TransitionReservation(ctx, res.ID, enums.ReservationStatusActive, enums.ReservationStatusConvertedToDebit, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	current, err := repo.GetReservation(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, enums.ReservationStatusReleased, current.Status)
	require.NotNil(t, current.ReleaseReason)
	assert.Equal(t, "order cancelled", *current.ReleaseReason)
}

func TestRepository_ActiveReservationQueries(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")

	active := &models.CreditReservation{
		RelationshipID: rel.ID,
		OrderID:        uuid.New(),
		Amount:         decimal.NewFromInt(100),
		Status:         enums.ReservationStatusActive,
	}
	released := &models.CreditReservation{
		RelationshipID: rel.ID,
		OrderID:        uuid.New(),
		Amount:         decimal.NewFromInt(200),
		Status:         enums.ReservationStatusReleased,
	}
	require.NoError(t, repo.CreateReservation(ctx, active))
	require.NoError(t, repo.CreateReservation(ctx, released))

	rows, err := repo.ListActiveReservations(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active.ID, rows[0].ID)

	found, err := repo.FindActiveReservationByOrder(ctx, active.OrderID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, active.ID, found.ID)

	gone, err := repo.FindActiveReservationByOrder(ctx, released.OrderID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRepository_ListActiveReservationsBefore(t *testing.T) {
	db := setupCreditTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")

	stale := &models.CreditReservation{
		ID:             uuid.New(),
		RelationshipID: rel.ID,
		OrderID:        uuid.New(),
		Amount:         decimal.NewFromInt(100),
		Status:         enums.ReservationStatusActive,
		CreatedAt:      time.Now().Add(-96 * time.Hour),
	}
	fresh := &models.CreditReservation{
		ID:             uuid.New(),
		RelationshipID: rel.ID,
		OrderID:        uuid.New(),
		Amount:         decimal.NewFromInt(100),
		Status:         enums.ReservationStatusActive,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(fresh).Error)

	rows, err := repo.ListActiveReservationsBefore(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newDBService(t *testing.T, db *gorm.DB) (Service, Repository) {
	t.Helper()

	repo := NewRepository(db)
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Ledger: ledger.NewRepository(db),
		Tx:     &gormTxRunner{db: db},
		Outbox: &fakeOutbox{},
		Audit:  &fakeAudit{},
		Lock:   config.CreditLockConfig{Attempts: 2, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return svc, repo
}

func TestService_ReservationsNeverOverspend(t *testing.T) {
	db := setupCreditTestDB(t)
	svc, repo := newDBService(t, db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")

	// Existing debt of 300 leaves 700 of headroom.
	require.NoError(t, ledger.NewRepository(db).Create(ctx, &models.LedgerEntry{
		DebtorStoreID:   rel.DebtorStoreID,
		CreditorStoreID: rel.CreditorStoreID,
		Type:            enums.LedgerEntryTypeDebit,
		Amount:          decimal.RequireFromString("300.00"),
	}))

	_, err := svc.ReserveCredit(ctx, ReserveCreditInput{
		RetailerStoreID:   rel.DebtorStoreID,
		WholesalerStoreID: rel.CreditorStoreID,
		OrderID:           uuid.New(),
		Amount:            decimal.RequireFromString("400.00"),
	})
	require.NoError(t, err)

	_, err = svc.ReserveCredit(ctx, ReserveCreditInput{
		RetailerStoreID:   rel.DebtorStoreID,
		WholesalerStoreID: rel.CreditorStoreID,
		OrderID:           uuid.New(),
		Amount:            decimal.RequireFromString("300.00"),
	})
	require.NoError(t, err)

	// Limit is fully committed between debt and holds.
	_, err = svc.ReserveCredit(ctx, ReserveCreditInput{
		RetailerStoreID:   rel.DebtorStoreID,
		WholesalerStoreID: rel.CreditorStoreID,
		OrderID:           uuid.New(),
		Amount:            decimal.RequireFromString("0.01"),
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeInsufficientCredit, typed.Code())
}

func TestService_ConcurrentReservationsStayWithinLimit(t *testing.T) {
	db := setupCreditTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps shared-cache sqlite from returning busy errors;
	// the headroom check still has to hold under interleaved callers.
	sqlDB.SetMaxOpenConns(1)

	svc, repo := newDBService(t, db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")

	const attempts = 8
	amount := decimal.RequireFromString("300.00")

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ReserveCredit(ctx, ReserveCreditInput{
				RetailerStoreID:   rel.DebtorStoreID,
				WholesalerStoreID: rel.CreditorStoreID,
				OrderID:           uuid.New(),
				Amount:            amount,
			})
			if err == nil {
				atomic.AddInt64(&granted, 1)
				return
			}
			typed := apperrors.As(err)
			if typed == nil || typed.Code() != apperrors.CodeInsufficientCredit {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 3 holds of 300 fit under the 1000 limit; a fourth would overspend.
	assert.Equal(t, int64(3), granted)

	rows, err := repo.ListActiveReservations(ctx, rel.ID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount)
	}
	assert.True(t, total.LessThanOrEqual(rel.CreditLimit), "active holds %s exceed limit %s", total, rel.CreditLimit)
}

func TestService_FinalizeThenSummaryOnDatabase(t *testing.T) {
	db := setupCreditTestDB(t)
	svc, repo := newDBService(t, db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "1000.00")
	orderID := uuid.New()

	_, err := svc.ReserveCredit(ctx, ReserveCreditInput{
		RetailerStoreID:   rel.DebtorStoreID,
		WholesalerStoreID: rel.CreditorStoreID,
		OrderID:           orderID,
		Amount:            decimal.RequireFromString("250.00"),
	})
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.FinalizeReservation(ctx, tx, orderID)
		return err
	}))

	// The hold became ledger debt: reserved drops, balance grows, available holds.
	summary, err := svc.AvailableCredit(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	require.NoError(t, err)
	assert.True(t, summary.Balance.Equal(decimal.RequireFromString("250.00")), "got %s", summary.Balance)
	assert.True(t, summary.Reserved.IsZero(), "got %s", summary.Reserved)
	assert.True(t, summary.Available.Equal(decimal.RequireFromString("750.00")), "got %s", summary.Available)

	// Finalizing again finds no active hold.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.FinalizeReservation(ctx, tx, orderID)
		return err
	})
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeCreditNotReserved, typed.Code())
}

func TestService_ReleaseActiveByOrderOnDatabase(t *testing.T) {
	db := setupCreditTestDB(t)
	svc, repo := newDBService(t, db)
	ctx := context.Background()

	rel := seedRelationship(t, repo, "500.00")
	orderID := uuid.New()

	reserved, err := svc.ReserveCredit(ctx, ReserveCreditInput{
		RetailerStoreID:   rel.DebtorStoreID,
		WholesalerStoreID: rel.CreditorStoreID,
		OrderID:           orderID,
		Amount:            decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)

	released, err := svc.ReleaseActiveByOrder(ctx, orderID, "order cancelled")
	require.NoError(t, err)
	require.NotNil(t, released)
	assert.Equal(t, reserved.ID, released.ID)

	// The full limit is available again.
	summary, err := svc.AvailableCredit(ctx, rel.DebtorStoreID, rel.CreditorStoreID)
	require.NoError(t, err)
	assert.True(t, summary.Available.Equal(decimal.RequireFromString("500.00")), "got %s", summary.Available)

	// Releasing an order with no active hold is a quiet no-op.
	again, err := svc.ReleaseActiveByOrder(ctx, orderID, "order cancelled")
	require.NoError(t, err)
	assert.Nil(t, again)
}
