package orders

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/api/validators"
	internalorders "github.com/ordena-ai/ordena-backend/internal/orders"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
	"github.com/ordena-ai/ordena-backend/pkg/pagination"
)

type createOrderRequest struct {
	WholesalerStoreID *string            `json:"wholesaler_store_id,omitempty" validate:"omitempty,uuid4"`
	Category          string             `json:"category" validate:"required"`
	Currency          string             `json:"currency" validate:"required"`
	Items             []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes             *string            `json:"notes,omitempty"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type transitionRequest struct {
	To     string  `json:"to" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// Create opens a new order in CREATED for the active retailer store.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		retailerID, actorID, err := retailerContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseProductCategory(payload.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		var wholesalerID *uuid.UUID
		if payload.WholesalerStoreID != nil {
			parsed, err := uuid.Parse(*payload.WholesalerStoreID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wholesaler store id"))
				return
			}
			wholesalerID = &parsed
		}

		items := make([]internalorders.OrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, internalorders.OrderItemInput{ProductID: productID, Qty: item.Qty})
		}

		order, err := svc.CreateOrder(r.Context(), internalorders.CreateOrderInput{
			RetailerStoreID:   retailerID,
			WholesalerStoreID: wholesalerID,
			Category:          category,
			Currency:          currency,
			Items:             items,
			Notes:             payload.Notes,
			ActorID:           actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Transition requests one state-machine step on the order.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(payload.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			To:      to,
			ActorID: actorID,
			Reason:  payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Detail returns the order with line items after an ownership check.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.RetailerStoreID != storeID &&
			(order.WholesalerStoreID == nil || *order.WholesalerStoreID != storeID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to store"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// State answers the current status and the legal next steps.
func State(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.GetOrderState(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// History returns the append-only transition log, oldest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.GetOrderHistory(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

// List returns retailer- or wholesaler-perspective order pages depending on
// the active store type.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var list *internalorders.OrderList
		switch middleware.StoreTypeFromContext(r.Context()) {
		case string(enums.StoreTypeRetailer):
			list, err = svc.ListRetailerOrders(r.Context(), storeID, params, filters)
		case string(enums.StoreTypeWholesaler):
			list, err = svc.ListWholesalerOrders(r.Context(), storeID, params, filters)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store type missing"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildFilters(r *http.Request) (internalorders.OrderFilters, error) {
	var filters internalorders.OrderFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", raw))
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid category %q", raw))
		}
		filters.Category = &category
	}

	dateFrom, err := parseDateParam(r.URL.Query().Get("date_from"), "date_from")
	if err != nil {
		return filters, err
	}
	filters.DateFrom = dateFrom

	dateTo, err := parseDateParam(r.URL.Query().Get("date_to"), "date_to")
	if err != nil {
		return filters, err
	}
	filters.DateTo = dateTo

	return filters, nil
}

func parseDateParam(value, field string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid %s", field))
		}
	}
	return &t, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func parseStoreID(r *http.Request) (uuid.UUID, error) {
	storeID := middleware.StoreIDFromContext(r.Context())
	if storeID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	parsed, err := uuid.Parse(storeID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	return parsed, nil
}

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return actorID, nil
}

func retailerContext(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	if middleware.StoreTypeFromContext(r.Context()) != string(enums.StoreTypeRetailer) {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "retailer store context required")
	}
	storeID, err := parseStoreID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	actorID, err := actorFromContext(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return storeID, actorID, nil
}
