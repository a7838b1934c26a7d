package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/pkg/apperror"

	"github.com/rs/zerolog"
)

// WebhookServiceImpl implements ports.WebhookService. It parses inbound
// notifications, matches them to a pending intent and funnels them into the
// single completion primitive on the payment service.
type WebhookServiceImpl struct {
	paymentRepo  ports.PaymentRepository
	payments     ports.PaymentService
	signatures   ports.SignatureService
	webhookCfg   config.WebhookConfig
	sepaySecret  string
	acctExpected string
	log          zerolog.Logger
}

// NewWebhookService creates a new WebhookServiceImpl. expectedAccount is the
// destination account number inbound bank transfers must name; empty disables
// the check.
func NewWebhookService(
	paymentRepo ports.PaymentRepository,
	payments ports.PaymentService,
	signatures ports.SignatureService,
	webhookCfg config.WebhookConfig,
	sepayCfg config.SePayConfig,
	expectedAccount string,
	log zerolog.Logger,
) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		paymentRepo:  paymentRepo,
		payments:     payments,
		signatures:   signatures,
		webhookCfg:   webhookCfg,
		sepaySecret:  sepayCfg.SecretKey,
		acctExpected: expectedAccount,
		log:          log,
	}
}

// HandleBank processes a bank transfer notification. A bad signature is the
// only authentication failure; everything after that is a business decision.
// An unmatched notification is acknowledged as not found so the bank stops
// retrying a transfer we will never recognise.
func (s *WebhookServiceImpl) HandleBank(ctx context.Context, rawBody []byte, headers map[string]string) (*ports.WebhookResult, error) {
	if s.webhookCfg.Secret != "" {
		header := s.webhookCfg.HeaderName
		if headerValue(headers, header) == "" {
			return nil, apperror.ErrMissingSignature()
		}
		ok := s.signatures.VerifyRequest(rawBody, headers, ports.SignatureConfig{
			Secret:     s.webhookCfg.Secret,
			Algorithm:  s.webhookCfg.Algorithm,
			HeaderName: header,
		})
		if !ok {
			s.log.Warn().Msg("bank webhook rejected, signature mismatch")
			return nil, apperror.ErrInvalidSignature()
		}
	}

	var payload domain.BankWebhook
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, apperror.Validation("invalid webhook payload")
	}
	if payload.TransactionID == "" && payload.Description == "" {
		return nil, apperror.ErrMissingCriteria()
	}

	intent, err := s.paymentRepo.FindPending(ctx, ports.MatchCriteria{
		TransactionID: payload.TransactionID,
		Description:   payload.Description,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("match bank webhook: %w", err))
	}
	if intent == nil {
		s.log.Info().
			Str("transaction_id", payload.TransactionID).
			Str("description", payload.Description).
			Msg("bank webhook acknowledged, no pending intent matched")
		return &ports.WebhookResult{
			Outcome: ports.WebhookOutcomeNotFound,
			Message: "no matching pending payment",
		}, nil
	}

	if delta := abs64(payload.Amount - intent.Amount); delta > s.webhookCfg.BankAmountTolerance {
		s.log.Warn().
			Str("intent_id", intent.ID.String()).
			Int64("expected", intent.Amount).
			Int64("received", payload.Amount).
			Msg("bank webhook amount mismatch")
		return nil, apperror.ErrAmountMismatch(intent.Amount, payload.Amount)
	}

	if s.acctExpected != "" && payload.AccountNumber != "" && payload.AccountNumber != s.acctExpected {
		s.log.Warn().
			Str("intent_id", intent.ID.String()).
			Str("account_number", payload.AccountNumber).
			Msg("bank webhook account mismatch")
		return nil, apperror.ErrAccountMismatch()
	}

	metadata := bankMetadata(payload)
	result, err := s.payments.Complete(ctx, intent, ports.CompletionParams{
		ConfirmedBy: domain.ConfirmedByWebhook,
		PaidAt:      time.Now().UTC(),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyCompleted {
		return &ports.WebhookResult{
			Outcome: ports.WebhookOutcomeAlreadyProcessed,
			Intent:  result.Intent,
			Message: "payment already processed",
		}, nil
	}
	return &ports.WebhookResult{
		Outcome: ports.WebhookOutcomeCompleted,
		Intent:  result.Intent,
		Message: "payment confirmed",
	}, nil
}

// HandleSePay processes a SePay IPN. The gateway retries on any non-2xx
// answer, so every decision short of a malformed or mismatched payload is
// acknowledged with success. Signature verification is absent here: SePay
// never documented a scheme for IPN payloads, so when a secret is configured
// we only log that the payload went unverified.
func (s *WebhookServiceImpl) HandleSePay(ctx context.Context, rawBody []byte) (*ports.WebhookResult, error) {
	if s.sepaySecret != "" {
		s.log.Warn().Msg("sepay ipn accepted without signature verification")
	}

	var ipn domain.SePayIPN
	if err := json.Unmarshal(rawBody, &ipn); err != nil {
		return nil, apperror.Validation("invalid ipn payload")
	}

	if !ipn.IsPaid() {
		s.log.Info().
			Str("notification_type", ipn.NotificationType).
			Str("order_status", ipn.Order.OrderStatus).
			Str("transaction_status", ipn.Transaction.Status).
			Msg("sepay ipn acknowledged, not a settled payment")
		return &ports.WebhookResult{
			Outcome: ports.WebhookOutcomeNotHandled,
			Message: "notification ignored",
		}, nil
	}

	if ipn.Order.OrderID == "" && ipn.Order.InvoiceNumber == "" {
		return nil, apperror.ErrMissingCriteria()
	}

	intent, err := s.matchSePay(ctx, &ipn)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		s.log.Info().
			Str("order_id", ipn.Order.OrderID).
			Str("invoice_number", ipn.Order.InvoiceNumber).
			Msg("sepay ipn acknowledged, no pending intent matched")
		return &ports.WebhookResult{
			Outcome: ports.WebhookOutcomeNotFound,
			Message: "no matching pending payment",
		}, nil
	}

	received, err := parseGatewayAmount(ipn.Order.OrderAmount)
	if err != nil {
		return nil, apperror.Validation("invalid order amount")
	}
	if delta := math.Abs(received - float64(intent.Amount)); delta > float64(s.webhookCfg.GatewayAmountTolerance) {
		s.log.Warn().
			Str("intent_id", intent.ID.String()).
			Int64("expected", intent.Amount).
			Str("received", ipn.Order.OrderAmount).
			Msg("sepay ipn amount mismatch")
		return nil, apperror.ErrAmountMismatch(intent.Amount, int64(math.Round(received)))
	}

	metadata := sepayMetadata(ipn)
	result, err := s.payments.Complete(ctx, intent, ports.CompletionParams{
		ConfirmedBy: domain.ConfirmedBySePayWebhook,
		PaidAt:      time.Now().UTC(),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	if result.AlreadyCompleted {
		return &ports.WebhookResult{
			Outcome: ports.WebhookOutcomeAlreadyProcessed,
			Intent:  result.Intent,
			Message: "payment already processed",
		}, nil
	}
	return &ports.WebhookResult{
		Outcome: ports.WebhookOutcomeCompleted,
		Intent:  result.Intent,
		Message: "payment confirmed",
	}, nil
}

// matchSePay resolves an IPN to a pending intent. Stage one matches the
// gateway's own ids exactly; stage two falls back to the order id appearing
// inside an intent's transfer description, which covers checkouts created
// before the gateway assigned its ids.
func (s *WebhookServiceImpl) matchSePay(ctx context.Context, ipn *domain.SePayIPN) (*domain.PaymentIntent, error) {
	intent, err := s.paymentRepo.FindPending(ctx, ports.MatchCriteria{
		TransactionID: ipn.Order.OrderID,
		Description:   ipn.Order.Description,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("match sepay ipn: %w", err))
	}
	if intent != nil {
		return intent, nil
	}

	intent, err = s.paymentRepo.FindPending(ctx, ports.MatchCriteria{
		OrderID:       ipn.Order.OrderID,
		InvoiceNumber: ipn.Order.InvoiceNumber,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("match sepay ipn fallback: %w", err))
	}
	return intent, nil
}

func bankMetadata(payload domain.BankWebhook) *string {
	raw, err := json.Marshal(map[string]string{
		"source":            "bank-webhook",
		"referenceNumber":   payload.ReferenceNumber,
		"bankTransactionId": payload.BankTransactionID,
		"timestamp":         payload.Timestamp,
	})
	if err != nil {
		return nil
	}
	meta := string(raw)
	return &meta
}

func sepayMetadata(ipn domain.SePayIPN) *string {
	raw, err := json.Marshal(map[string]string{
		"source":          "sepay-ipn",
		"sepayOrderId":    ipn.Order.ID,
		"sepayTxId":       ipn.Transaction.ID,
		"paymentMethod":   ipn.Transaction.PaymentMethod,
		"gatewayTxnId":    ipn.Transaction.TransactionID,
		"orderCurrency":   ipn.Order.OrderCurrency,
		"transactionTime": strconv.FormatInt(ipn.Timestamp, 10),
	})
	if err != nil {
		return nil
	}
	meta := string(raw)
	return &meta
}

// parseGatewayAmount parses SePay's decimal string amounts ("100000.00").
func parseGatewayAmount(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	return f, nil
}

// headerValue resolves a header case-insensitively. Callers hand over maps
// from several transports (net/http canonical names, lowercase simulator
// names), so an exact hit is tried first and a fold scan covers the rest.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
