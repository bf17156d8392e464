package routing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
)

// Repository handles vendor routing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRouting(ctx context.Context, routing *models.VendorRouting) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.VendorRouting, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error)
	CreateResponse(ctx context.Context, response *models.VendorResponse) error
	ListResponses(ctx context.Context, routingID uuid.UUID) ([]models.VendorResponse, error)
	AcceptWinner(ctx context.Context, routingID, vendorStoreID uuid.UUID, at time.Time) (int64, error)
	CancelRouting(ctx context.Context, routingID uuid.UUID) (int64, error)
	MarkCancellationSent(ctx context.Context, responseID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a routing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRouting(ctx context.Context, routing *models.VendorRouting) error {
	if routing.ID == uuid.Nil {
		routing.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit("Responses").Create(routing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VendorRouting, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.VendorRouting, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

func (r *repository) findOne(ctx context.Context, clause string, arg any) (*models.VendorRouting, error) {
	var routing models.VendorRouting
	err := r.db.WithContext(ctx).
		Preload("Responses").
		Where(clause, arg).
		First(&routing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &routing, nil
}

func (r *repository) CreateResponse(ctx context.Context, response *models.VendorResponse) error {
	if response.ID == uuid.Nil {
		response.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(response).Error
}

func (r *repository) ListResponses(ctx context.Context, routingID uuid.UUID) ([]models.VendorResponse, error) {
	var responses []models.VendorResponse
	if err := r.db.WithContext(ctx).
		Where("routing_id = ?", routingID).
		Order("created_at ASC, id ASC").
		Find(&responses).Error; err != nil {
		return nil, err
	}
	return responses, nil
}

// AcceptWinner flips the routing to vendor_accepted only while it is still
// pending. One row affected means this vendor won; zero means someone else
// already did, or the routing was cancelled.
func (r *repository) AcceptWinner(ctx context.Context, routingID, vendorStoreID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorRouting{}).
		Where("id = ? AND status = ?", routingID, enums.RoutingStatusPendingResponses).
		Updates(map[string]any{
			"status":          enums.RoutingStatusVendorAccepted,
			"winner_store_id": vendorStoreID,
			"accepted_at":     at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) CancelRouting(ctx context.Context, routingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VendorRouting{}).
		Where("id = ? AND status = ?", routingID, enums.RoutingStatusPendingResponses).
		Update("status", enums.RoutingStatusCancelled)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) MarkCancellationSent(ctx context.Context, responseID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorResponse{}).
		Where("id = ?", responseID).
		Update("cancellation_sent_at", at).Error
}

// isUniqueViolation matches the duplicate-key errors both Postgres and sqlite
// raise for the (routing, vendor) unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
