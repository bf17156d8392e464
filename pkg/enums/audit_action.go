package enums

import "fmt"

// AuditAction names the operation recorded in admin_audit_logs.
type AuditAction string

const (
	AuditActionOrderCreated          AuditAction = "order_created"
	AuditActionOrderTransition       AuditAction = "order_transition"
	AuditActionOrderTransitionDenied AuditAction = "order_transition_denied"
	AuditActionCreditLimitSet        AuditAction = "credit_limit_set"
	AuditActionCreditBlocked         AuditAction = "credit_blocked"
	AuditActionCreditUnblocked       AuditAction = "credit_unblocked"
	AuditActionPaymentRecorded       AuditAction = "payment_recorded"
)

var validAuditActions = []AuditAction{
	AuditActionOrderCreated,
	AuditActionOrderTransition,
	AuditActionOrderTransitionDenied,
	AuditActionCreditLimitSet,
	AuditActionCreditBlocked,
	AuditActionCreditUnblocked,
	AuditActionPaymentRecorded,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
