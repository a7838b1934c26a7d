package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, transaction_id, description, amount, status, bank_name,
	account_number, account_name, user_id, qr_generated_at, expires_at, paid_at,
	confirmed_by, metadata`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment intent.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	query := `INSERT INTO payments (id, transaction_id, description, amount, status, bank_name,
		account_number, account_name, user_id, qr_generated_at, expires_at, paid_at, confirmed_by, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.TransactionID, p.Description, p.Amount, p.Status,
		p.BankName, p.AccountNumber, p.AccountName, p.UserID,
		p.QRGeneratedAt, p.ExpiresAt, p.PaidAt, p.ConfirmedBy, p.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment intent by UUID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// FindPending resolves match criteria to the newest pending intent. Criteria
// apply in order of precision: an exact transaction id wins over an exact
// description, which wins over a substring match of the gateway's order or
// invoice number against transaction id, description and metadata.
func (r *PaymentRepo) FindPending(ctx context.Context, criteria ports.MatchCriteria) (*domain.PaymentIntent, error) {
	return r.findByCriteria(ctx, criteria, true)
}

// FindLatest is FindPending without the status filter, for the poll path.
func (r *PaymentRepo) FindLatest(ctx context.Context, criteria ports.MatchCriteria) (*domain.PaymentIntent, error) {
	return r.findByCriteria(ctx, criteria, false)
}

func (r *PaymentRepo) findByCriteria(ctx context.Context, criteria ports.MatchCriteria, pendingOnly bool) (*domain.PaymentIntent, error) {
	if criteria.Empty() {
		return nil, fmt.Errorf("empty match criteria")
	}

	statusCond := ""
	if pendingOnly {
		statusCond = ` AND status = 'pending'`
	}
	order := ` ORDER BY qr_generated_at DESC LIMIT 1`

	if criteria.TransactionID != "" {
		query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1` + statusCond + order
		p, err := r.scanPayment(r.pool.QueryRow(ctx, query, criteria.TransactionID))
		if err != nil || p != nil {
			return p, err
		}
	}

	if criteria.Description != "" {
		query := `SELECT ` + paymentColumns + ` FROM payments WHERE description = $1` + statusCond + order
		p, err := r.scanPayment(r.pool.QueryRow(ctx, query, criteria.Description))
		if err != nil || p != nil {
			return p, err
		}
	}

	for _, needle := range []string{criteria.OrderID, criteria.InvoiceNumber} {
		if needle == "" {
			continue
		}
		query := `SELECT ` + paymentColumns + ` FROM payments
			WHERE (transaction_id LIKE '%' || $1 || '%'
				OR description LIKE '%' || $1 || '%'
				OR COALESCE(metadata, '') LIKE '%' || $1 || '%')` + statusCond + order
		p, err := r.scanPayment(r.pool.QueryRow(ctx, query, needle))
		if err != nil || p != nil {
			return p, err
		}
	}

	return nil, nil
}

// CompletePending conditionally flips a pending intent to completed within a
// database transaction. The status predicate makes the flip a compare-and-set:
// exactly one concurrent caller observes an affected row.
func (r *PaymentRepo) CompletePending(ctx context.Context, tx pgx.Tx, id uuid.UUID, params ports.CompletionParams) (bool, error) {
	query := `UPDATE payments
		SET status = 'completed', paid_at = $2, confirmed_by = $3, metadata = COALESCE($4, metadata)
		WHERE id = $1 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, id, params.PaidAt, params.ConfirmedBy, params.Metadata)
	if err != nil {
		return false, fmt.Errorf("complete payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExpired conditionally flips a pending intent to expired. Same
// compare-and-set shape as CompletePending, so a racing completion wins.
func (r *PaymentRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE payments SET status = 'expired' WHERE id = $1 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark payment expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches payment intents with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentIntent, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.UserID)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM payments" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := fmt.Sprintf("SELECT "+paymentColumns+" FROM payments%s ORDER BY qr_generated_at DESC LIMIT $%d OFFSET $%d",
		where, argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentIntent
	for rows.Next() {
		var p domain.PaymentIntent
		err := rows.Scan(
			&p.ID, &p.TransactionID, &p.Description, &p.Amount, &p.Status,
			&p.BankName, &p.AccountNumber, &p.AccountName, &p.UserID,
			&p.QRGeneratedAt, &p.ExpiresAt, &p.PaidAt, &p.ConfirmedBy, &p.Metadata,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, total, nil
}

// scanPayment is a helper to scan a single row into a PaymentIntent.
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.PaymentIntent, error) {
	p := &domain.PaymentIntent{}
	err := row.Scan(
		&p.ID, &p.TransactionID, &p.Description, &p.Amount, &p.Status,
		&p.BankName, &p.AccountNumber, &p.AccountName, &p.UserID,
		&p.QRGeneratedAt, &p.ExpiresAt, &p.PaidAt, &p.ConfirmedBy, &p.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
