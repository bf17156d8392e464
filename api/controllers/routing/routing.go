package routing

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/api/validators"
	internalrouting "github.com/ordena-ai/ordena-backend/internal/routing"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type respondRequest struct {
	Response string  `json:"response" validate:"required"`
	Note     *string `json:"note,omitempty" validate:"omitempty,max=512"`
}

// RouteOrder broadcasts an unassigned order to every eligible vendor.
func RouteOrder(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.StoreTypeFromContext(r.Context()) != string(enums.StoreTypeRetailer) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "retailer store context required"))
			return
		}
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

		view, err := svc.RouteOrder(r.Context(), internalrouting.RouteOrderInput{
			OrderID: orderID,
			ActorID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// Respond records one vendor's accept or decline. At most one vendor wins an
// order; a second accept comes back with accepted=false and the winner id.
func Respond(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.StoreTypeFromContext(r.Context()) != string(enums.StoreTypeWholesaler) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wholesaler store context required"))
			return
		}
		vendorStoreID, err := parseStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
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

		var payload respondRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		response, err := enums.ParseVendorResponseType(payload.Response)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid response"))
			return
		}

		decision, err := svc.Respond(r.Context(), internalrouting.VendorResponseInput{
			OrderID:       orderID,
			VendorStoreID: vendorStoreID,
			Response:      response,
			Note:          payload.Note,
			ActorID:       actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}

// Status returns the routing round for the order with per-vendor responses.
func Status(svc internalrouting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetRoutingStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
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
