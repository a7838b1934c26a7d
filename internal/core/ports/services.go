package ports

import (
	"context"
	"time"

	"marketplace-payments/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureConfig parameterises webhook signature verification.
type SignatureConfig struct {
	Secret     string // empty disables verification
	Algorithm  string // sha256 or sha512
	HeaderName string // default x-signature
}

// SignatureService handles HMAC signing and webhook verification.
type SignatureService interface {
	// Sign computes a lowercase-hex HMAC of payload.
	Sign(secret string, payload string, algorithm string) string
	// Verify checks signature against HMAC(secret, payload) in constant time.
	// An optional "sha256="/"sha512=" prefix on signature is stripped first.
	Verify(secret string, payload string, signature string, algorithm string) bool
	// VerifyRequest validates an inbound webhook: signature read from the
	// configured header, HMAC computed over the exact raw body bytes. Returns
	// true when no secret is configured (verification disabled).
	VerifyRequest(rawBody []byte, headers map[string]string, cfg SignatureConfig) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for admin sessions.
type TokenService interface {
	Generate(adminID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AdminID  uuid.UUID
	Username string
}

// StatusCache is the Redis fast path for the poll endpoint. Only terminal
// statuses are cached; pending intents always hit the store so lazy expiry
// runs.
type StatusCache interface {
	Get(ctx context.Context, transactionID string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, transactionID string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// CreatePaymentRequest holds validated input for intent creation.
type CreatePaymentRequest struct {
	Amount        int64
	Description   string
	UserID        *uuid.UUID
	BankName      string // empty = configured default
	AccountNumber string
	AccountName   string
	Metadata      *string
}

// CheckResult is the poll-endpoint answer: current truth, nothing mutated on
// the read path beyond lazy expiry persistence.
type CheckResult struct {
	Intent    *domain.PaymentIntent
	Confirmed bool
	IsExpired bool
}

// ConfirmRequest holds input for a privileged manual confirmation.
type ConfirmRequest struct {
	TransactionID string
	Description   string
	ConfirmedBy   string
}

// CompletionResult reports the outcome of the idempotent completion path.
type CompletionResult struct {
	Intent *domain.PaymentIntent
	// AlreadyCompleted is true for callers that lost the race or retried: the
	// intent was completed before and no side effects ran this time.
	AlreadyCompleted bool
}

// PurchaseRequest holds input for a wallet debit.
type PurchaseRequest struct {
	UserID      uuid.UUID
	Amount      int64
	OrderID     string
	Description string
}

// PaymentService defines the payment-confirmation core.
type PaymentService interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*domain.PaymentIntent, error)
	// Check looks up an intent by transaction id and/or description, marking
	// it expired first when its deadline has passed.
	Check(ctx context.Context, transactionID, description string) (*CheckResult, error)
	// Confirm is the admin path. It refuses intents past their deadline and
	// funnels into the same completion primitive as the webhook paths.
	Confirm(ctx context.Context, req ConfirmRequest) (*domain.PaymentIntent, error)
	// Complete flips a pending intent to completed exactly once, crediting
	// the wallet and appending one DEPOSIT ledger row inside one database
	// transaction. Safe to call any number of times.
	Complete(ctx context.Context, intent *domain.PaymentIntent, params CompletionParams) (*CompletionResult, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.LedgerTransaction, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.PaymentIntent, int64, error)
}

// WebhookOutcome classifies how an inbound notification was handled.
type WebhookOutcome string

const (
	WebhookOutcomeCompleted        WebhookOutcome = "completed"
	WebhookOutcomeAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookOutcomeNotFound         WebhookOutcome = "not_found"
	WebhookOutcomeNotHandled       WebhookOutcome = "not_handled"
)

// WebhookResult is returned for acknowledged notifications. Hard rejections
// (bad signature, amount/account mismatch) surface as errors instead.
type WebhookResult struct {
	Outcome WebhookOutcome
	Intent  *domain.PaymentIntent
	Message string
}

// WebhookService processes inbound payment notifications.
type WebhookService interface {
	// HandleBank verifies the signature over rawBody, matches and completes
	// the referenced pending intent.
	HandleBank(ctx context.Context, rawBody []byte, headers map[string]string) (*WebhookResult, error)
	// HandleSePay processes a SePay IPN. Signature verification for this path
	// is a known limitation: the gateway never documented a scheme, so the
	// payload is accepted and a warning is logged when a secret is set.
	HandleSePay(ctx context.Context, rawBody []byte) (*WebhookResult, error)
}

// AuthService defines admin authentication.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}
