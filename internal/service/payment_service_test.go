package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/internal/core/ports/mocks"
	"marketplace-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type paymentServiceDeps struct {
	svc         *PaymentServiceImpl
	paymentRepo *mocks.MockPaymentRepository
	walletRepo  *mocks.MockWalletRepository
	ledgerRepo  *mocks.MockLedgerRepository
	statusCache *mocks.MockStatusCache
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupPaymentService(t *testing.T) *paymentServiceDeps {
	ctrl := gomock.NewController(t)
	d := &paymentServiceDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		statusCache: mocks.NewMockStatusCache(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	cfg := config.PaymentConfig{
		IntentTTL:     10 * time.Minute,
		BankName:      "VPBank",
		AccountNumber: "1105200789",
		AccountName:   "TRAN DINH KHOA",
	}
	d.svc = NewPaymentService(
		d.paymentRepo, d.walletRepo, d.ledgerRepo, d.statusCache,
		d.transactor, cfg, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// ==================== Create Tests ====================

func TestPaymentService_Create_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	var created *domain.PaymentIntent
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, intent *domain.PaymentIntent) error {
			created = intent
			return nil
		})

	before := time.Now().UTC()
	intent, err := d.svc.Create(ctx, ports.CreatePaymentRequest{
		Amount:      100000,
		Description: "Nap tien vao vi ORDER123",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, domain.PaymentStatusPending, intent.Status)
	assert.True(t, strings.HasPrefix(intent.TransactionID, "deposit-"))
	assert.Equal(t, "VPBank", intent.BankName)
	assert.Equal(t, "1105200789", intent.AccountNumber)
	assert.Equal(t, "TRAN DINH KHOA", intent.AccountName)

	// expiry sits one TTL after issuance
	assert.WithinDuration(t, before.Add(10*time.Minute), intent.ExpiresAt, 2*time.Second)
}

func TestPaymentService_Create_OverridesDefaults(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.paymentRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	intent, err := d.svc.Create(ctx, ports.CreatePaymentRequest{
		Amount:        50000,
		Description:   "custom",
		BankName:      "OtherBank",
		AccountNumber: "999",
	})
	require.NoError(t, err)
	assert.Equal(t, "OtherBank", intent.BankName)
	assert.Equal(t, "999", intent.AccountNumber)
	assert.Equal(t, "TRAN DINH KHOA", intent.AccountName)
}

func TestPaymentService_Create_InvalidAmount(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreatePaymentRequest{
		Amount:      0,
		Description: "x",
	})
	assertAppErrorCode(t, err, "PAY_001")
}

func TestPaymentService_Create_MissingDescription(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreatePaymentRequest{Amount: 1000})
	assertAppErrorCode(t, err, "PAY_002")
}

// ==================== Check Tests ====================

func TestPaymentService_Check_MissingCriteria(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Check(context.Background(), "", "")
	assertAppErrorCode(t, err, "PAY_003")
}

func TestPaymentService_Check_NotFound(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.statusCache.EXPECT().Get(ctx, "deposit-1").Return(nil, nil)
	d.paymentRepo.EXPECT().FindLatest(ctx, ports.MatchCriteria{TransactionID: "deposit-1"}).Return(nil, nil)

	result, err := d.svc.Check(ctx, "deposit-1", "")
	require.NoError(t, err)
	assert.Nil(t, result.Intent)
	assert.False(t, result.Confirmed)
}

func TestPaymentService_Check_PendingNotExpired(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(5 * time.Minute))

	d.statusCache.EXPECT().Get(ctx, intent.TransactionID).Return(nil, nil)
	d.paymentRepo.EXPECT().FindLatest(ctx, gomock.Any()).Return(intent, nil)

	result, err := d.svc.Check(ctx, intent.TransactionID, "")
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
	assert.False(t, result.IsExpired)
	assert.Equal(t, domain.PaymentStatusPending, result.Intent.Status)
}

func TestPaymentService_Check_ExpiresLazily(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(-time.Minute))

	d.statusCache.EXPECT().Get(ctx, intent.TransactionID).Return(nil, nil)
	d.paymentRepo.EXPECT().FindLatest(ctx, gomock.Any()).Return(intent, nil)
	d.paymentRepo.EXPECT().MarkExpired(ctx, intent.ID).Return(true, nil)
	d.statusCache.EXPECT().Set(ctx, intent.TransactionID, gomock.Any(), statusCacheTTL).Return(nil)

	result, err := d.svc.Check(ctx, intent.TransactionID, "")
	require.NoError(t, err)
	assert.True(t, result.IsExpired)
	assert.False(t, result.Confirmed)
	assert.Equal(t, domain.PaymentStatusExpired, result.Intent.Status)
}

func TestPaymentService_Check_CompletionWinsExpiryRace(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(-time.Minute))

	// A webhook settles the intent between the read and the expiry flip;
	// the lost conditional update must surface the stored truth, not a
	// stale expired answer.
	completed := *intent
	completed.Status = domain.PaymentStatusCompleted
	now := time.Now().UTC()
	completed.PaidAt = &now

	d.statusCache.EXPECT().Get(ctx, intent.TransactionID).Return(nil, nil)
	d.paymentRepo.EXPECT().FindLatest(ctx, gomock.Any()).Return(intent, nil)
	d.paymentRepo.EXPECT().MarkExpired(ctx, intent.ID).Return(false, nil)
	d.paymentRepo.EXPECT().GetByID(ctx, intent.ID).Return(&completed, nil)
	d.statusCache.EXPECT().Set(ctx, intent.TransactionID, gomock.Any(), statusCacheTTL).DoAndReturn(
		func(_ context.Context, _ string, payload []byte, _ time.Duration) error {
			var cached domain.PaymentIntent
			require.NoError(t, json.Unmarshal(payload, &cached))
			assert.Equal(t, domain.PaymentStatusCompleted, cached.Status)
			return nil
		})

	result, err := d.svc.Check(ctx, intent.TransactionID, "")
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
	assert.False(t, result.IsExpired)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Intent.Status)
}

func TestPaymentService_Check_CacheHit(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	intent.Status = domain.PaymentStatusCompleted
	cached, err := json.Marshal(intent)
	require.NoError(t, err)

	d.statusCache.EXPECT().Get(ctx, intent.TransactionID).Return(cached, nil)
	// no FindLatest expected: the cached answer short-circuits the store

	result, err := d.svc.Check(ctx, intent.TransactionID, "")
	require.NoError(t, err)
	assert.True(t, result.Confirmed)
}

func TestPaymentService_Check_CacheErrorFallsThrough(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))

	d.statusCache.EXPECT().Get(ctx, intent.TransactionID).Return(nil, assert.AnError)
	d.paymentRepo.EXPECT().FindLatest(ctx, gomock.Any()).Return(intent, nil)

	result, err := d.svc.Check(ctx, intent.TransactionID, "")
	require.NoError(t, err)
	assert.False(t, result.Confirmed)
}

// ==================== Complete Tests ====================

func TestPaymentService_Complete_WinnerCreditsOnce(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	intent := pendingIntent(time.Now().Add(time.Minute))
	intent.UserID = &userID
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().CompletePending(ctx, tx, intent.ID, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().Credit(ctx, tx, userID, intent.Amount).Return(nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerTransaction) error {
			assert.Equal(t, domain.LedgerTypeDeposit, entry.Type)
			assert.Equal(t, intent.Amount, entry.Amount)
			assert.Equal(t, userID, entry.UserID)
			return nil
		})
	d.statusCache.EXPECT().Set(ctx, intent.TransactionID, gomock.Any(), statusCacheTTL).Return(nil)

	result, err := d.svc.Complete(ctx, intent, ports.CompletionParams{ConfirmedBy: domain.ConfirmedByWebhook})
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Intent.Status)
	require.NotNil(t, result.Intent.ConfirmedBy)
	assert.Equal(t, domain.ConfirmedByWebhook, *result.Intent.ConfirmedBy)
	assert.NotNil(t, result.Intent.PaidAt)
}

func TestPaymentService_Complete_LoserIsNoOp(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	intent := pendingIntent(time.Now().Add(time.Minute))
	intent.UserID = &userID
	tx := &mockTx{}

	settled := *intent
	settled.Status = domain.PaymentStatusCompleted

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().CompletePending(ctx, tx, intent.ID, gomock.Any()).Return(false, nil)
	d.paymentRepo.EXPECT().GetByID(ctx, intent.ID).Return(&settled, nil)
	// no Credit, no ledger Create: the loser performs no side effects

	result, err := d.svc.Complete(ctx, intent, ports.CompletionParams{ConfirmedBy: domain.ConfirmedByAdmin})
	require.NoError(t, err)
	assert.True(t, result.AlreadyCompleted)
	assert.Equal(t, domain.PaymentStatusCompleted, result.Intent.Status)
}

func TestPaymentService_Complete_AnonymousIntentSkipsWallet(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().CompletePending(ctx, tx, intent.ID, gomock.Any()).Return(true, nil)
	d.statusCache.EXPECT().Set(ctx, intent.TransactionID, gomock.Any(), statusCacheTTL).Return(nil)

	result, err := d.svc.Complete(ctx, intent, ports.CompletionParams{ConfirmedBy: domain.ConfirmedByWebhook})
	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
}

// ==================== Confirm Tests ====================

func TestPaymentService_Confirm_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	tx := &mockTx{}

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.paymentRepo.EXPECT().CompletePending(ctx, tx, intent.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, params ports.CompletionParams) (bool, error) {
			assert.Equal(t, domain.ConfirmedByAdmin, params.ConfirmedBy)
			return true, nil
		})
	d.statusCache.EXPECT().Set(ctx, intent.TransactionID, gomock.Any(), statusCacheTTL).Return(nil)

	confirmed, err := d.svc.Confirm(ctx, ports.ConfirmRequest{TransactionID: intent.TransactionID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, confirmed.Status)
}

func TestPaymentService_Confirm_NotFound(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(nil, nil)

	_, err := d.svc.Confirm(ctx, ports.ConfirmRequest{TransactionID: "deposit-404"})
	assertAppErrorCode(t, err, "PAY_004")
}

func TestPaymentService_Confirm_RejectsExpired(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(-time.Minute))

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)
	d.paymentRepo.EXPECT().MarkExpired(ctx, intent.ID).Return(true, nil)

	_, err := d.svc.Confirm(ctx, ports.ConfirmRequest{TransactionID: intent.TransactionID})
	assertAppErrorCode(t, err, "PAY_005")
}

func TestPaymentService_Confirm_CompletedWhileExpiring(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(-time.Minute))

	completed := *intent
	completed.Status = domain.PaymentStatusCompleted

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)
	d.paymentRepo.EXPECT().MarkExpired(ctx, intent.ID).Return(false, nil)
	d.paymentRepo.EXPECT().GetByID(ctx, intent.ID).Return(&completed, nil)

	confirmed, err := d.svc.Confirm(ctx, ports.ConfirmRequest{TransactionID: intent.TransactionID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, confirmed.Status)
}

// ==================== Purchase Tests ====================

func TestPaymentService_Purchase_Success(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, int64(30000)).Return(true, nil)
	d.ledgerRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerTransaction) error {
			assert.Equal(t, domain.LedgerTypePurchase, entry.Type)
			require.NotNil(t, entry.OrderID)
			assert.Equal(t, "ORD-7", *entry.OrderID)
			return nil
		})

	entry, err := d.svc.Purchase(ctx, ports.PurchaseRequest{
		UserID:  userID,
		Amount:  30000,
		OrderID: "ORD-7",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerStatusCompleted, entry.Status)
}

func TestPaymentService_Purchase_InsufficientFunds(t *testing.T) {
	d := setupPaymentService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().Debit(ctx, tx, userID, int64(999999)).Return(false, nil)

	_, err := d.svc.Purchase(ctx, ports.PurchaseRequest{
		UserID:  userID,
		Amount:  999999,
		OrderID: "ORD-8",
	})
	assertAppErrorCode(t, err, "PAY_008")
}

// ==================== helpers ====================

func pendingIntent(expiresAt time.Time) *domain.PaymentIntent {
	now := time.Now().UTC()
	return &domain.PaymentIntent{
		ID:            uuid.New(),
		TransactionID: domain.NewTransactionID(now),
		Description:   "Nap tien vao vi " + uuid.NewString()[:8],
		Amount:        100000,
		Status:        domain.PaymentStatusPending,
		BankName:      "VPBank",
		AccountNumber: "1105200789",
		AccountName:   "TRAN DINH KHOA",
		QRGeneratedAt: now,
		ExpiresAt:     expiresAt.UTC(),
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, code, appErr.Code)
}
