package extid

import "github.com/google/uuid"

// Generator mints a new external identifier.
type Generator func() string

// NewUUID returns a random version 4 UUID in canonical hyphenated form.
func NewUUID() string {
	return uuid.NewString()
}
