package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository. Balances only ever move by
// relative SQL increments; no code path reads a balance and writes it back.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Credit adds amount to the user's balance, creating the wallet row on the
// first deposit.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	query := `INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + $2`

	_, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// Debit subtracts amount if the balance covers it. The balance predicate
// makes the check and the subtraction one atomic statement, so concurrent
// purchases cannot overdraw.
func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (bool, error) {
	query := `UPDATE wallets SET balance = balance - $2 WHERE user_id = $1 AND balance >= $2`

	tag, err := tx.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("debit wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBalance fetches the current balance. A user without a wallet row has a
// zero balance.
func (r *WalletRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT balance FROM wallets WHERE user_id = $1`

	var balance int64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}
