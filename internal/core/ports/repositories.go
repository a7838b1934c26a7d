package ports

import (
	"context"
	"time"

	"marketplace-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MatchCriteria identifies the pending intent a notification refers to.
// Precedence: exact TransactionID, then Description, then substring match of
// OrderID/InvoiceNumber against transaction id, description, and metadata.
type MatchCriteria struct {
	TransactionID string
	Description   string
	OrderID       string
	InvoiceNumber string
}

// Empty reports whether no criterion is set. An empty criteria set must fail
// fast rather than match everything.
func (c MatchCriteria) Empty() bool {
	return c.TransactionID == "" && c.Description == "" &&
		c.OrderID == "" && c.InvoiceNumber == ""
}

// CompletionParams carries the audit fields written by the winning completion.
type CompletionParams struct {
	ConfirmedBy string
	PaidAt      time.Time
	Metadata    *string // JSON trace blob (raw webhook body, gateway ids)
}

// PaymentListParams holds filter + pagination for listing intents.
type PaymentListParams struct {
	Status   *domain.PaymentStatus
	UserID   *uuid.UUID
	Page     int
	PageSize int
}

// PaymentRepository defines persistence operations for payment intents.
// Methods accepting pgx.Tx run inside a database transaction so the status
// flip and its side effects commit atomically.
type PaymentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	// FindPending returns the newest pending intent matching the criteria,
	// or nil when none matches. Terminal intents are never returned.
	FindPending(ctx context.Context, criteria MatchCriteria) (*domain.PaymentIntent, error)
	// FindLatest returns the newest intent of any status (read/poll path).
	FindLatest(ctx context.Context, criteria MatchCriteria) (*domain.PaymentIntent, error)
	// CompletePending conditionally flips a pending intent to completed.
	// Returns true only for the caller that won the race; a false return with
	// nil error means the intent was no longer pending.
	CompletePending(ctx context.Context, tx pgx.Tx, id uuid.UUID, params CompletionParams) (bool, error)
	// MarkExpired conditionally flips a pending intent to expired. Same
	// affected-row semantics as CompletePending.
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.PaymentIntent, int64, error)
}

// WalletRepository defines balance operations. Both mutations are atomic at
// the store level to avoid lost updates under concurrent deposits.
type WalletRepository interface {
	// Credit adds amount to the user's balance.
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error
	// Debit subtracts amount if the balance covers it. Returns false when
	// funds are insufficient; no partial debit happens.
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// LedgerRepository defines persistence for immutable ledger rows.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerTransaction, error)
}

// AdminRepository defines persistence operations for admin accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
