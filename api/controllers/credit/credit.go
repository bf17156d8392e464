package credit

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordena-ai/ordena-backend/api/middleware"
	"github.com/ordena-ai/ordena-backend/api/responses"
	"github.com/ordena-ai/ordena-backend/api/validators"
	internalcredit "github.com/ordena-ai/ordena-backend/internal/credit"
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	pkgerrors "github.com/ordena-ai/ordena-backend/pkg/errors"
	"github.com/ordena-ai/ordena-backend/pkg/logger"
)

type recordPaymentRequest struct {
	RetailerStoreID   *string `json:"retailer_store_id,omitempty" validate:"omitempty,uuid4"`
	WholesalerStoreID *string `json:"wholesaler_store_id,omitempty" validate:"omitempty,uuid4"`
	Amount            string  `json:"amount" validate:"required"`
	Reference         string  `json:"reference" validate:"required,max=128"`
}

type setLimitRequest struct {
	RetailerStoreID string `json:"retailer_store_id" validate:"required,uuid4"`
	CreditLimit     string `json:"credit_limit" validate:"required"`
}

type blockRequest struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

// Available reports limit, balance, reserved and headroom for the credit line
// between the caller's store and the counterparty in the path.
func Available(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counterpartyID, err := parsePathUUID(r, "counterpartyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var retailerID, wholesalerID uuid.UUID
		switch middleware.StoreTypeFromContext(r.Context()) {
		case string(enums.StoreTypeRetailer):
			retailerID, wholesalerID = storeID, counterpartyID
		case string(enums.StoreTypeWholesaler):
			retailerID, wholesalerID = counterpartyID, storeID
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "store type missing"))
			return
		}

		summary, err := svc.AvailableCredit(r.Context(), retailerID, wholesalerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// RecordPayment appends a payment entry that reduces the retailer's
// outstanding balance. Either side of the relationship may record it; the
// caller's own store is taken from context and the counterparty from the body.
func RecordPayment(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := parseStoreID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := parseAmount(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var retailerID, wholesalerID uuid.UUID
		switch middleware.StoreTypeFromContext(r.Context()) {
		case string(enums.StoreTypeRetailer):
			retailerID = storeID
			wholesalerID, err = requiredBodyUUID(payload.WholesalerStoreID, "wholesaler_store_id")
		case string(enums.StoreTypeWholesaler):
			wholesalerID = storeID
			retailerID, err = requiredBodyUUID(payload.RetailerStoreID, "retailer_store_id")
		default:
			err = pkgerrors.New(pkgerrors.CodeForbidden, "store type missing")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RecordPayment(r.Context(), internalcredit.RecordPaymentInput{
			RetailerStoreID:   retailerID,
			WholesalerStoreID: wholesalerID,
			Amount:            amount,
			Reference:         payload.Reference,
			ActorID:           actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// SetLimit creates or resizes the credit line a wholesaler extends to a retailer.
func SetLimit(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wholesalerID, actorID, err := wholesalerContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setLimitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		retailerID, err := uuid.Parse(payload.RetailerStoreID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid retailer store id"))
			return
		}
		limit, err := parseAmount(payload.CreditLimit, "credit_limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rel, err := svc.SetCreditLimit(r.Context(), internalcredit.SetCreditLimitInput{
			RetailerStoreID:   retailerID,
			WholesalerStoreID: wholesalerID,
			CreditLimit:       limit,
			ActorID:           actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rel)
	}
}

// Block freezes a credit relationship so no new reservations can be taken.
func Block(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wholesalerID, actorID, err := wholesalerContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		retailerID, err := parsePathUUID(r, "retailerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload blockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.BlockRelationship(r.Context(), retailerID, wholesalerID, actorID, payload.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "blocked"})
	}
}

// Unblock lifts a freeze placed by Block.
func Unblock(svc internalcredit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wholesalerID, actorID, err := wholesalerContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		retailerID, err := parsePathUUID(r, "retailerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UnblockRelationship(r.Context(), retailerID, wholesalerID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "active"})
	}
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	if amount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, field+" must not be negative")
	}
	return amount, nil
}

func requiredBodyUUID(raw *string, field string) (uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return parsed, nil
}

func parsePathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return parsed, nil
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

func wholesalerContext(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	if middleware.StoreTypeFromContext(r.Context()) != string(enums.StoreTypeWholesaler) {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "wholesaler store context required")
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
