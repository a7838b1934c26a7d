package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Provenance tags recorded on completion for audit.
const (
	ConfirmedByAdmin        = "admin"
	ConfirmedByWebhook      = "webhook"
	ConfirmedBySePayWebhook = "sepay-webhook"
)

// PaymentIntent tracks one expected incoming funds transfer. The payer is
// instructed to include Description in the transfer memo; TransactionID is the
// primary idempotent lookup key. Intents are never deleted.
type PaymentIntent struct {
	ID            uuid.UUID     `json:"id"`
	TransactionID string        `json:"transaction_id"`
	Description   string        `json:"description"`
	Amount        int64         `json:"amount"` // Whole currency units (VND)
	Status        PaymentStatus `json:"status"`
	BankName      string        `json:"bank_name"`
	AccountNumber string        `json:"account_number"`
	AccountName   string        `json:"account_name"`
	UserID        *uuid.UUID    `json:"user_id,omitempty"` // nil for guest top-ups
	QRGeneratedAt time.Time     `json:"qr_generated_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	ConfirmedBy   *string       `json:"confirmed_by,omitempty"`
	Metadata      *string       `json:"metadata,omitempty"` // Opaque JSON trace blob
}

// IsTerminal returns true once the intent can no longer change state.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == PaymentStatusCompleted ||
		p.Status == PaymentStatusExpired ||
		p.Status == PaymentStatusFailed
}

// IsExpired reports whether a still-pending intent is past its deadline.
// Completed intents never report expired regardless of the clock.
func (p *PaymentIntent) IsExpired(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.ExpiresAt)
}

// NewTransactionID issues the caller-visible token for a fresh intent.
// Re-issuing a QR after expiry always goes through here: a new intent with a
// new token, never a status flip on the old record.
func NewTransactionID(now time.Time) string {
	return fmt.Sprintf("deposit-%d", now.UnixMilli())
}
