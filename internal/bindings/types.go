package bindings

import (
	"errors"
	"time"
)

// ErrInvalidArgument is returned when either side of a binding is missing.
var ErrInvalidArgument = errors.New("external id and local id are required")

// Binding is the durable 1:1 association between a chat-platform identity
// and a host forum account.
type Binding struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	LocalID    string    `json:"local_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
