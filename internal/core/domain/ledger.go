package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerType represents the kind of balance-affecting event.
type LedgerType string

const (
	LedgerTypeDeposit  LedgerType = "DEPOSIT"
	LedgerTypePurchase LedgerType = "PURCHASE"
)

// LedgerStatus mirrors the payment outcome on the ledger row.
type LedgerStatus string

const (
	LedgerStatusCompleted LedgerStatus = "completed"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// LedgerTransaction is an immutable audit record of a wallet mutation.
// Rows are inserted exactly once per confirmed event and never updated.
type LedgerTransaction struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Type        LedgerType   `json:"type"`
	Amount      int64        `json:"amount"`
	Status      LedgerStatus `json:"status"`
	OrderID     *string      `json:"order_id,omitempty"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
}
