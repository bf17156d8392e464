package db

import "strings"

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockNotAvailable reports whether the error is a Postgres 55P03, raised by
// SELECT ... FOR UPDATE NOWAIT when another tx already holds the row lock.
func IsLockNotAvailable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "55P03") ||
		strings.Contains(msg, "could not obtain lock")
}
