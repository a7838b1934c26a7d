package domain

import (
	"github.com/google/uuid"
)

// Wallet is a user's integer balance in whole currency units. The balance is
// only ever mutated by atomic increments at the store level; application code
// never does read-modify-write on it.
type Wallet struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
}
