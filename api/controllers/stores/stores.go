package stores

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/api/validators"
	internalstores "github.com/ordena-ai/ordena-backend/internal/stores"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type createStoreRequest struct {
	Type        string   `json:"type" validate:"required"`
	CompanyName string   `json:"company_name" validate:"required,max=256"`
	DBAName     *string  `json:"dba_name,omitempty" validate:"omitempty,max=256"`
	Phone       *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email       *string  `json:"email,omitempty" validate:"omitempty,email"`
	Categories  []string `json:"categories,omitempty" validate:"omitempty,dive,min=1"`
}

type updateStoreRequest struct {
	CompanyName *string   `json:"company_name,omitempty" validate:"omitempty,max=256"`
	DBAName     *string   `json:"dba_name,omitempty" validate:"omitempty,max=256"`
	Phone       *string   `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email       *string   `json:"email,omitempty" validate:"omitempty,email"`
	Categories  *[]string `json:"categories,omitempty"`
}

// Create registers a store owned by the authenticated user.
func Create(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createStoreRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeType, err := enums.ParseStoreType(payload.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store type"))
			return
		}

		store, err := svc.Create(r.Context(), internalstores.CreateStoreInput{
			Type:        storeType,
			CompanyName: payload.CompanyName,
			DBAName:     payload.DBAName,
			Phone:       payload.Phone,
			Email:       payload.Email,
			Categories:  payload.Categories,
			OwnerID:     ownerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, store)
	}
}

// Mine lists every store owned by the authenticated user.
func Mine(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByOwner(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one store profile.
func Detail(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parsePathStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store, err := svc.GetByID(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}

// Update mutates profile fields on a store the caller owns.
func Update(svc internalstores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		storeID, err := parsePathStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		existing, err := svc.GetByID(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if existing.OwnerID != actorID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store is not owned by caller"))
			return
		}

		var payload updateStoreRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.Update(r.Context(), storeID, internalstores.UpdateStoreInput{
			CompanyName: payload.CompanyName,
			DBAName:     payload.DBAName,
			Phone:       payload.Phone,
			Email:       payload.Email,
			Categories:  payload.Categories,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store)
	}
}

func parsePathStoreID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "storeId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	storeID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	return storeID, nil
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
