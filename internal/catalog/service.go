package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
)

// ItemRequest is one requested product line before pricing.
type ItemRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// PricedItem is the catalog's priced snapshot of one requested line.
type PricedItem struct {
	ProductID uuid.UUID
	Name      string
	Unit      enums.ProductUnit
	UnitPrice decimal.Decimal
	Qty       int
	Total     decimal.Decimal
}

// PricedOrder aggregates the priced lines and their sum.
type PricedOrder struct {
	Items []PricedItem
	Total decimal.Decimal
}

// Service prices order lines against the live catalog.
type Service interface {
	PriceItems(ctx context.Context, category enums.ProductCategory, items []ItemRequest) (*PricedOrder, error)
	ListCategory(ctx context.Context, category enums.ProductCategory) ([]PricedItem, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service with the required repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// PriceItems resolves every requested product, enforces category, activity and
// minimum-order-quantity rules, and returns priced snapshots. Prices are
// copied onto the result so later catalog edits never change a placed order.
func (s *service) PriceItems(ctx context.Context, category enums.ProductCategory, items []ItemRequest) (*PricedOrder, error) {
	if !category.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid product category")
	}
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no items to price")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, apperrors.New(apperrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]int, len(products))
	for i, product := range products {
		byID[product.ID] = i
	}

	priced := &PricedOrder{
		Items: make([]PricedItem, 0, len(items)),
		Total: decimal.Zero,
	}
	for _, item := range items {
		idx, ok := byID[item.ProductID]
		if !ok {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		product := products[idx]
		if !product.IsActive {
			return nil, apperrors.New(apperrors.CodeValidation, "product is not orderable").
				WithDetails(map[string]any{"sku": product.SKU})
		}
		if product.Category != category {
			return nil, apperrors.New(apperrors.CodeValidation, "product belongs to a different category").
				WithDetails(map[string]any{"sku": product.SKU, "category": product.Category.String()})
		}
		if item.Qty < product.MOQ {
			return nil, apperrors.New(apperrors.CodeValidation, "quantity below minimum order quantity").
				WithDetails(map[string]any{"sku": product.SKU, "moq": product.MOQ, "qty": item.Qty})
		}

		total := product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		priced.Items = append(priced.Items, PricedItem{
			ProductID: product.ID,
			Name:      product.Title,
			Unit:      product.Unit,
			UnitPrice: product.UnitPrice,
			Qty:       item.Qty,
			Total:     total,
		})
		priced.Total = priced.Total.Add(total)
	}
	return priced, nil
}

func (s *service) ListCategory(ctx context.Context, category enums.ProductCategory) ([]PricedItem, error) {
	if !category.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid product category")
	}
	products, err := s.repo.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]PricedItem, 0, len(products))
	for _, product := range products {
		out = append(out, PricedItem{
			ProductID: product.ID,
			Name:      product.Title,
			Unit:      product.Unit,
			UnitPrice: product.UnitPrice,
			Qty:       product.MOQ,
			Total:     product.UnitPrice.Mul(decimal.NewFromInt(int64(product.MOQ))),
		})
	}
	return out, nil
}
