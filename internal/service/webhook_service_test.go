package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testWebhookSecret  = "test-webhook-secret"
	testExpectedAcct   = "1105200789"
	testSignatureHdr   = "x-signature"
	testSignatureAlgos = "sha256"
)

type webhookServiceDeps struct {
	svc         *WebhookServiceImpl
	paymentRepo *mocks.MockPaymentRepository
	payments    *mocks.MockPaymentService
	ctrl        *gomock.Controller
}

func setupWebhookService(t *testing.T, secret string) *webhookServiceDeps {
	ctrl := gomock.NewController(t)
	d := &webhookServiceDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		payments:    mocks.NewMockPaymentService(ctrl),
		ctrl:        ctrl,
	}
	webhookCfg := config.WebhookConfig{
		Secret:                 secret,
		Algorithm:              testSignatureAlgos,
		HeaderName:             testSignatureHdr,
		BankAmountTolerance:    0,
		GatewayAmountTolerance: 1,
	}
	d.svc = NewWebhookService(
		d.paymentRepo, d.payments, NewHMACSignatureService(),
		webhookCfg, config.SePayConfig{}, testExpectedAcct, zerolog.Nop(),
	)
	return d
}

func signedBankBody(t *testing.T, payload domain.BankWebhook) ([]byte, map[string]string) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	sig := NewHMACSignatureService().Sign(testWebhookSecret, string(body), testSignatureAlgos)
	return body, map[string]string{testSignatureHdr: sig}
}

// ==================== Bank Webhook Tests ====================

func TestWebhookService_HandleBank_Success(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: intent.TransactionID,
		Description:   intent.Description,
		Amount:        intent.Amount,
		AccountNumber: testExpectedAcct,
	})

	d.paymentRepo.EXPECT().FindPending(ctx, ports.MatchCriteria{
		TransactionID: intent.TransactionID,
		Description:   intent.Description,
	}).Return(intent, nil)

	completed := *intent
	completed.Status = domain.PaymentStatusCompleted
	d.payments.EXPECT().Complete(ctx, intent, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.PaymentIntent, params ports.CompletionParams) (*ports.CompletionResult, error) {
			assert.Equal(t, domain.ConfirmedByWebhook, params.ConfirmedBy)
			require.NotNil(t, params.Metadata)
			return &ports.CompletionResult{Intent: &completed}, nil
		})

	result, err := d.svc.HandleBank(ctx, body, headers)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeCompleted, result.Outcome)
}

func TestWebhookService_HandleBank_InvalidSignature(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	body, _ := signedBankBody(t, domain.BankWebhook{TransactionID: "deposit-1", Amount: 1000})
	headers := map[string]string{testSignatureHdr: "deadbeef"}

	_, err := d.svc.HandleBank(context.Background(), body, headers)
	assertAppErrorCode(t, err, "SEC_001")
}

func TestWebhookService_HandleBank_MissingSignature(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	body, _ := signedBankBody(t, domain.BankWebhook{TransactionID: "deposit-1", Amount: 1000})

	_, err := d.svc.HandleBank(context.Background(), body, map[string]string{})
	assertAppErrorCode(t, err, "SEC_002")
}

func TestWebhookService_HandleBank_CanonicalHeaderNameAccepted(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: "deposit-unknown",
		Amount:        1000,
	})
	// Same signature under the net/http canonical name instead of the
	// configured lowercase one.
	canonical := map[string]string{"X-Signature": headers[testSignatureHdr]}

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(nil, nil)

	result, err := d.svc.HandleBank(ctx, body, canonical)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeNotFound, result.Outcome)
}

func TestWebhookService_HandleBank_NoSecretSkipsVerification(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	body, err := json.Marshal(domain.BankWebhook{TransactionID: "deposit-1", Amount: 1000})
	require.NoError(t, err)

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(nil, nil)

	result, err := d.svc.HandleBank(ctx, body, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeNotFound, result.Outcome)
}

func TestWebhookService_HandleBank_NotFoundIsAcknowledged(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: "deposit-unknown",
		Amount:        1000,
	})

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(nil, nil)

	result, err := d.svc.HandleBank(ctx, body, headers)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeNotFound, result.Outcome)
}

func TestWebhookService_HandleBank_AmountMismatch(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: intent.TransactionID,
		Amount:        intent.Amount - 1, // exact match required on this path
	})

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)

	_, err := d.svc.HandleBank(ctx, body, headers)
	assertAppErrorCode(t, err, "PAY_006")
}

func TestWebhookService_HandleBank_AccountMismatch(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: intent.TransactionID,
		Amount:        intent.Amount,
		AccountNumber: "0000000000",
	})

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)

	_, err := d.svc.HandleBank(ctx, body, headers)
	assertAppErrorCode(t, err, "PAY_007")
}

func TestWebhookService_HandleBank_RetryIsAlreadyProcessed(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	body, headers := signedBankBody(t, domain.BankWebhook{
		TransactionID: intent.TransactionID,
		Amount:        intent.Amount,
		AccountNumber: testExpectedAcct,
	})

	settled := *intent
	settled.Status = domain.PaymentStatusCompleted

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)
	d.payments.EXPECT().Complete(ctx, intent, gomock.Any()).
		Return(&ports.CompletionResult{Intent: &settled, AlreadyCompleted: true}, nil)

	result, err := d.svc.HandleBank(ctx, body, headers)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeAlreadyProcessed, result.Outcome)
}

func TestWebhookService_HandleBank_MissingCriteria(t *testing.T) {
	d := setupWebhookService(t, testWebhookSecret)
	defer d.ctrl.Finish()

	body, headers := signedBankBody(t, domain.BankWebhook{Amount: 1000})

	_, err := d.svc.HandleBank(context.Background(), body, headers)
	assertAppErrorCode(t, err, "PAY_003")
}

// ==================== SePay IPN Tests ====================

func paidIPN(orderID, invoice, amount string) domain.SePayIPN {
	return domain.SePayIPN{
		Timestamp:        time.Now().UnixMilli(),
		NotificationType: domain.SePayNotificationOrderPaid,
		Order: domain.SePayOrder{
			ID:            "sepay-ord-1",
			OrderID:       orderID,
			OrderStatus:   domain.SePayOrderStatusCaptured,
			OrderCurrency: "VND",
			OrderAmount:   amount,
			InvoiceNumber: invoice,
		},
		Transaction: domain.SePayTransaction{
			ID:     "sepay-tx-1",
			Status: domain.SePayTxStatusApproved,
			Amount: amount,
		},
	}
}

func TestWebhookService_HandleSePay_Success(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	ipn := paidIPN(intent.TransactionID, "INV-1", "100000.00")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	d.paymentRepo.EXPECT().FindPending(ctx, ports.MatchCriteria{
		TransactionID: intent.TransactionID,
		Description:   ipn.Order.Description,
	}).Return(intent, nil)

	completed := *intent
	completed.Status = domain.PaymentStatusCompleted
	d.payments.EXPECT().Complete(ctx, intent, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.PaymentIntent, params ports.CompletionParams) (*ports.CompletionResult, error) {
			assert.Equal(t, domain.ConfirmedBySePayWebhook, params.ConfirmedBy)
			return &ports.CompletionResult{Intent: &completed}, nil
		})

	result, err := d.svc.HandleSePay(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeCompleted, result.Outcome)
}

func TestWebhookService_HandleSePay_ToleratesSubunitRounding(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	intent.Amount = 100000
	ipn := paidIPN(intent.TransactionID, "", "100000.99")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)
	d.payments.EXPECT().Complete(ctx, intent, gomock.Any()).
		Return(&ports.CompletionResult{Intent: intent}, nil)

	_, err = d.svc.HandleSePay(ctx, body)
	require.NoError(t, err)
}

func TestWebhookService_HandleSePay_AmountMismatch(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	intent.Amount = 100000
	ipn := paidIPN(intent.TransactionID, "", "100002.00")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(intent, nil)

	_, err = d.svc.HandleSePay(ctx, body)
	assertAppErrorCode(t, err, "PAY_006")
}

func TestWebhookService_HandleSePay_IgnoresUnsettledNotification(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ipn := paidIPN("deposit-1", "", "1000.00")
	ipn.Transaction.Status = "DECLINED"
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	result, err := d.svc.HandleSePay(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeNotHandled, result.Outcome)
}

func TestWebhookService_HandleSePay_MissingOrderIDs(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ipn := paidIPN("", "", "1000.00")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	_, err = d.svc.HandleSePay(context.Background(), body)
	assertAppErrorCode(t, err, "PAY_003")
}

func TestWebhookService_HandleSePay_FallbackMatch(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	intent := pendingIntent(time.Now().Add(time.Minute))
	ipn := paidIPN("ORDER123", "INV-9", "100000.00")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	// stage one misses on the gateway ids, stage two matches on substring
	d.paymentRepo.EXPECT().FindPending(ctx, ports.MatchCriteria{
		TransactionID: "ORDER123",
		Description:   ipn.Order.Description,
	}).Return(nil, nil)
	d.paymentRepo.EXPECT().FindPending(ctx, ports.MatchCriteria{
		OrderID:       "ORDER123",
		InvoiceNumber: "INV-9",
	}).Return(intent, nil)
	d.payments.EXPECT().Complete(ctx, intent, gomock.Any()).
		Return(&ports.CompletionResult{Intent: intent}, nil)

	result, err := d.svc.HandleSePay(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeCompleted, result.Outcome)
}

func TestWebhookService_HandleSePay_NoMatchIsAcknowledged(t *testing.T) {
	d := setupWebhookService(t, "")
	defer d.ctrl.Finish()

	ctx := context.Background()
	ipn := paidIPN("ORDER404", "", "1000.00")
	body, err := json.Marshal(ipn)
	require.NoError(t, err)

	d.paymentRepo.EXPECT().FindPending(ctx, gomock.Any()).Return(nil, nil).Times(2)

	result, err := d.svc.HandleSePay(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, ports.WebhookOutcomeNotFound, result.Outcome)
}
