package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path params and cursor ids are
// checked with this before they reach a uuid-typed column; a bad cast there
// errors instead of returning no rows.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
