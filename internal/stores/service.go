package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ordena-ai/ordena-backend/pkg/db/models"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
)

// Service exposes the retailer/wholesaler registry.
type Service interface {
	Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]StoreDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*StoreDTO, error)
	RequireActiveStore(ctx context.Context, storeID uuid.UUID, storeType enums.StoreType) (*models.Store, error)
	FindEligibleVendors(ctx context.Context, category enums.ProductCategory) ([]models.Store, error)
}

type service struct {
	repo Repository
}

// NewService builds a store service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error) {
	if !input.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid store type")
	}
	if input.CompanyName == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "company name required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "owner id required")
	}
	for _, raw := range input.Categories {
		if _, err := enums.ParseProductCategory(raw); err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown product category").
				WithDetails(map[string]any{"category": raw})
		}
	}

	store := input.ToModel()
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, err
	}
	return FromModel(store), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "store not found")
	}
	return FromModel(store), nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]StoreDTO, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "owner id required")
	}
	stores, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]StoreDTO, 0, len(stores))
	for i := range stores {
		out = append(out, *FromModel(&stores[i]))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "store not found")
	}

	updates := map[string]any{}
	if input.CompanyName != nil {
		updates["company_name"] = *input.CompanyName
	}
	if input.DBAName != nil {
		updates["dba_name"] = *input.DBAName
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Email != nil {
		updates["email"] = *input.Email
	}
	if input.Categories != nil {
		for _, raw := range *input.Categories {
			if _, err := enums.ParseProductCategory(raw); err != nil {
				return nil, apperrors.New(apperrors.CodeValidation, "unknown product category").
					WithDetails(map[string]any{"category": raw})
			}
		}
		updates["categories"] = pq.StringArray(*input.Categories)
	}
	if len(updates) == 0 {
		return FromModel(store), nil
	}

	if err := s.repo.Update(ctx, store.ID, updates); err != nil {
		return nil, err
	}
	refreshed, err := s.repo.FindByID(ctx, store.ID)
	if err != nil {
		return nil, err
	}
	return FromModel(refreshed), nil
}

// RequireActiveStore loads the store and rejects it unless it is active and of
// the expected type. Order creation and routing both gate on this.
func (s *service) RequireActiveStore(ctx context.Context, storeID uuid.UUID, storeType enums.StoreType) (*models.Store, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id required")
	}
	store, err := s.repo.FindByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "store not found")
	}
	if store.Type != storeType {
		return nil, apperrors.New(apperrors.CodeValidation, "store has the wrong type").
			WithDetails(map[string]any{"expected": storeType.String(), "actual": store.Type.String()})
	}
	if !store.Active {
		return nil, apperrors.New(apperrors.CodeForbidden, "store is deactivated")
	}
	return store, nil
}

// FindEligibleVendors returns the wholesalers a routing broadcast may target.
func (s *service) FindEligibleVendors(ctx context.Context, category enums.ProductCategory) ([]models.Store, error) {
	if !category.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid product category")
	}
	return s.repo.ListActiveByTypeAndCategory(ctx, enums.StoreTypeWholesaler, category)
}
