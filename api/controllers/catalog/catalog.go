package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/api/responses"
	internalcatalog "github.com/ordena-ai/ordena-backend/internal/catalog"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type listedProduct struct {
	ProductID uuid.UUID         `json:"product_id"`
	Name      string            `json:"name"`
	Unit      enums.ProductUnit `json:"unit"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
}

// ListCategory returns the orderable products for one category.
func ListCategory(svc internalcatalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(chi.URLParam(r, "category"))
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		items, err := svc.ListCategory(r.Context(), category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]listedProduct, 0, len(items))
		for _, item := range items {
			out = append(out, listedProduct{
				ProductID: item.ProductID,
				Name:      item.Name,
				Unit:      item.Unit,
				UnitPrice: item.UnitPrice,
			})
		}
		responses.WriteSuccess(w, map[string]any{
			"category": category,
			"items":    out,
		})
	}
}
