package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
//
// DEBIT raises the debtor's outstanding balance, CREDIT lowers it, and
// ADJUSTMENT is a positive manual correction applied on top.
type LedgerEntryType string

const (
	LedgerEntryTypeDebit      LedgerEntryType = "debit"
	LedgerEntryTypeCredit     LedgerEntryType = "credit"
	LedgerEntryTypeAdjustment LedgerEntryType = "adjustment"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeDebit,
	LedgerEntryTypeCredit,
	LedgerEntryTypeAdjustment,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
