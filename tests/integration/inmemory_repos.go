package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu      sync.RWMutex
	intents map[uuid.UUID]*domain.PaymentIntent
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{intents: make(map[uuid.UUID]*domain.PaymentIntent)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, intent *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *intent
	r.intents[intent.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.intents[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) FindPending(ctx context.Context, criteria ports.MatchCriteria) (*domain.PaymentIntent, error) {
	return r.find(criteria, true)
}

func (r *inMemoryPaymentRepo) FindLatest(ctx context.Context, criteria ports.MatchCriteria) (*domain.PaymentIntent, error) {
	return r.find(criteria, false)
}

// find mirrors the SQL matching precedence: exact transaction id first, then
// exact description, then substring match of order id / invoice number.
func (r *inMemoryPaymentRepo) find(criteria ports.MatchCriteria, pendingOnly bool) (*domain.PaymentIntent, error) {
	if criteria.Empty() {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*domain.PaymentIntent, 0, len(r.intents))
	for _, p := range r.intents {
		if pendingOnly && p.Status != domain.PaymentStatusPending {
			continue
		}
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].QRGeneratedAt.After(candidates[j].QRGeneratedAt)
	})

	if criteria.TransactionID != "" {
		for _, p := range candidates {
			if p.TransactionID == criteria.TransactionID {
				cp := *p
				return &cp, nil
			}
		}
	}
	if criteria.Description != "" {
		for _, p := range candidates {
			if p.Description == criteria.Description {
				cp := *p
				return &cp, nil
			}
		}
	}
	for _, needle := range []string{criteria.OrderID, criteria.InvoiceNumber} {
		if needle == "" {
			continue
		}
		for _, p := range candidates {
			meta := ""
			if p.Metadata != nil {
				meta = *p.Metadata
			}
			if strings.Contains(p.TransactionID, needle) ||
				strings.Contains(p.Description, needle) ||
				strings.Contains(meta, needle) {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) CompletePending(ctx context.Context, tx pgx.Tx, id uuid.UUID, params ports.CompletionParams) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.intents[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusCompleted
	paidAt := params.PaidAt
	p.PaidAt = &paidAt
	confirmedBy := params.ConfirmedBy
	p.ConfirmedBy = &confirmedBy
	if params.Metadata != nil {
		p.Metadata = params.Metadata
	}
	return true, nil
}

func (r *inMemoryPaymentRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.intents[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusExpired
	return true, nil
}

func (r *inMemoryPaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentIntent, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PaymentIntent
	for _, p := range r.intents {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.UserID != nil && (p.UserID == nil || *p.UserID != *params.UserID) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].QRGeneratedAt.After(result[j].QRGeneratedAt)
	})
	total := int64(len(result))

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.PaymentIntent{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]int64
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{balances: make(map[uuid.UUID]int64)}
}

func (r *inMemoryWalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amount
	return nil
}

func (r *inMemoryWalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return false, nil
	}
	r.balances[userID] -= amount
	return true, nil
}

func (r *inMemoryWalletRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balances[userID], nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerTransaction
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerTransaction
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].UserID == userID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

func (r *inMemoryLedgerRepo) countByType(userID uuid.UUID, ledgerType domain.LedgerType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.UserID == userID && e.Type == ledgerType {
			n++
		}
	}
	return n
}

// --- In-Memory Admin Repo ---

type inMemoryAdminRepo struct {
	mu     sync.RWMutex
	admins map[string]*domain.Admin
}

func newInMemoryAdminRepo() *inMemoryAdminRepo {
	return &inMemoryAdminRepo{admins: make(map[string]*domain.Admin)}
}

func (r *inMemoryAdminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admins[admin.Username]; ok {
		return fmt.Errorf("username already exists")
	}
	cp := *admin
	r.admins[admin.Username] = &cp
	return nil
}

func (r *inMemoryAdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admins[username]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// --- In-Memory Status Cache ---

type inMemoryStatusCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func newInMemoryStatusCache() *inMemoryStatusCache {
	return &inMemoryStatusCache{entries: make(map[string][]byte)}
}

func (c *inMemoryStatusCache) Get(ctx context.Context, transactionID string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[transactionID], nil
}

func (c *inMemoryStatusCache) Set(ctx context.Context, transactionID string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[transactionID] = value
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
