package domain

import "github.com/google/uuid"

// NewID returns a time ordered id. Ids created later compare greater, which
// is what cursor pagination relies on.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
