package domain

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a back-office account allowed to confirm payments manually.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Argon2id encoded
	CreatedAt    time.Time `json:"created_at"`
}
