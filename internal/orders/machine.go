package orders

import (
	"github.com/ordena-ai/ordena-backend/pkg/enums"
	apperrors "github.com/ordena-ai/ordena-backend/pkg/errors"
)

// forwardTransitions is the closed lifecycle table. CANCELLED and FAILED are
// reachable from every non-terminal state and are appended by
// AllowedTransitions rather than listed per row.
var forwardTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusCreated:        {enums.OrderStatusValidated},
	enums.OrderStatusValidated:      {enums.OrderStatusCreditReserved, enums.OrderStatusVendorNotified},
	enums.OrderStatusCreditReserved: {enums.OrderStatusVendorNotified},
	enums.OrderStatusVendorNotified: {enums.OrderStatusVendorAccepted, enums.OrderStatusVendorRejected},
	enums.OrderStatusVendorAccepted: {enums.OrderStatusFulfilled},
	enums.OrderStatusVendorRejected: {},
}

// AllowedTransitions returns every status legally reachable from the given one.
// Terminal states return an empty slice.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	if from.IsTerminal() {
		return []enums.OrderStatus{}
	}
	forward := forwardTransitions[from]
	allowed := make([]enums.OrderStatus, 0, len(forward)+2)
	allowed = append(allowed, forward...)
	allowed = append(allowed, enums.OrderStatusCancelled, enums.OrderStatusFailed)
	return allowed
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range AllowedTransitions(from) {
		if candidate == to {
			return true
		}
	}
	return false
}

func invalidTransitionError(current, attempted enums.OrderStatus) error {
	allowed := AllowedTransitions(current)
	names := make([]string, 0, len(allowed))
	for _, status := range allowed {
		names = append(names, status.String())
	}
	return apperrors.New(apperrors.CodeStateConflict, "transition not allowed from current state").
		WithDetails(map[string]any{
			"current":   current.String(),
			"attempted": attempted.String(),
			"allowed":   names,
		})
}
