package enums

import "fmt"

// RoutingStatus represents the vendor_routing_status enum in Postgres.
type RoutingStatus string

const (
	RoutingStatusPendingResponses RoutingStatus = "pending_responses"
	RoutingStatusVendorAccepted   RoutingStatus = "vendor_accepted"
	RoutingStatusCancelled        RoutingStatus = "cancelled"
)

var validRoutingStatuses = []RoutingStatus{
	RoutingStatusPendingResponses,
	RoutingStatusVendorAccepted,
	RoutingStatusCancelled,
}

// String implements fmt.Stringer.
func (s RoutingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RoutingStatus.
func (s RoutingStatus) IsValid() bool {
	for _, candidate := range validRoutingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRoutingStatus converts raw input into a RoutingStatus.
func ParseRoutingStatus(value string) (RoutingStatus, error) {
	for _, candidate := range validRoutingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid routing status %q", value)
}

// VendorResponseType captures a vendor's answer to a routing broadcast.
type VendorResponseType string

const (
	VendorResponseAccepted VendorResponseType = "accepted"
	VendorResponseRejected VendorResponseType = "rejected"
)

var validVendorResponseTypes = []VendorResponseType{
	VendorResponseAccepted,
	VendorResponseRejected,
}

// String implements fmt.Stringer.
func (t VendorResponseType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known VendorResponseType.
func (t VendorResponseType) IsValid() bool {
	for _, candidate := range validVendorResponseTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseVendorResponseType converts raw input into a VendorResponseType.
func ParseVendorResponseType(value string) (VendorResponseType, error) {
	for _, candidate := range validVendorResponseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor response type %q", value)
}
