package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a credit reservation.
type ReservationStatus string

const (
	ReservationStatusActive           ReservationStatus = "active"
	ReservationStatusReleased         ReservationStatus = "released"
	ReservationStatusConvertedToDebit ReservationStatus = "converted_to_debit"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusActive,
	ReservationStatusReleased,
	ReservationStatusConvertedToDebit,
}

// String implements fmt.Stringer.
func (s ReservationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationStatus.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
