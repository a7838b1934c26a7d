package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedgerEntry(userID uuid.UUID) *domain.LedgerTransaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.LedgerTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        domain.LedgerTypeDeposit,
		Amount:      100000,
		Status:      domain.LedgerStatusCompleted,
		Description: "Nap tien vao vi - ORDER123",
		CreatedAt:   now,
	}
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	entry := newTestLedgerEntry(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_transactions").
		WithArgs(
			entry.ID, entry.UserID, entry.Type, entry.Amount,
			entry.Status, entry.OrderID, entry.Description, entry.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	userID := uuid.New()
	entry := newTestLedgerEntry(userID)

	mock.ExpectQuery("SELECT .+ FROM ledger_transactions WHERE user_id").
		WithArgs(userID, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "type", "amount", "status", "order_id", "description", "created_at",
		}).AddRow(
			entry.ID, entry.UserID, entry.Type, entry.Amount,
			entry.Status, entry.OrderID, entry.Description, entry.CreatedAt,
		))

	entries, err := repo.ListByUser(context.Background(), userID, 20)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
