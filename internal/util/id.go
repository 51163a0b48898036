package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used as job identifier.
func NewID() string {
	return uuid.NewString()
}
