package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// statusCacheTTL bounds how long a terminal poll answer is served from Redis.
const statusCacheTTL = time.Hour

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	walletRepo  ports.WalletRepository
	ledgerRepo  ports.LedgerRepository
	statusCache ports.StatusCache
	transactor  ports.DBTransactor
	cfg         config.PaymentConfig
	log         zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	statusCache ports.StatusCache,
	transactor ports.DBTransactor,
	cfg config.PaymentConfig,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		statusCache: statusCache,
		transactor:  transactor,
		cfg:         cfg,
		log:         log,
	}
}

// Create issues a fresh PaymentIntent with a new transaction id and a fixed
// expiry window. Re-attempting after expiry creates a new intent; the expired
// record keeps its history.
func (s *PaymentServiceImpl) Create(ctx context.Context, req ports.CreatePaymentRequest) (*domain.PaymentIntent, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Description == "" {
		return nil, apperror.ErrMissingDescription()
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:            uuid.New(),
		TransactionID: domain.NewTransactionID(now),
		Description:   req.Description,
		Amount:        req.Amount,
		Status:        domain.PaymentStatusPending,
		BankName:      defaultString(req.BankName, s.cfg.BankName),
		AccountNumber: defaultString(req.AccountNumber, s.cfg.AccountNumber),
		AccountName:   defaultString(req.AccountName, s.cfg.AccountName),
		UserID:        req.UserID,
		QRGeneratedAt: now,
		ExpiresAt:     now.Add(s.cfg.IntentTTL),
		Metadata:      req.Metadata,
	}

	if err := s.paymentRepo.Create(ctx, intent); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment intent: %w", err))
	}

	s.log.Info().
		Str("intent_id", intent.ID.String()).
		Str("transaction_id", intent.TransactionID).
		Int64("amount", intent.Amount).
		Time("expires_at", intent.ExpiresAt).
		Msg("payment intent created")

	return intent, nil
}

// Check answers a poll: current status plus the expiry flag. A pending intent
// past its deadline is flipped to expired here, before the caller sees the
// answer, so a late webhook cannot complete an intent the user was already
// told is dead. Nothing on this path touches the wallet.
func (s *PaymentServiceImpl) Check(ctx context.Context, transactionID, description string) (*ports.CheckResult, error) {
	criteria := ports.MatchCriteria{TransactionID: transactionID, Description: description}
	if criteria.Empty() {
		return nil, apperror.ErrMissingCriteria()
	}

	// Fast path: terminal statuses are cached by transaction id.
	if transactionID != "" {
		if cached, err := s.statusCache.Get(ctx, transactionID); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("status cache read failed, falling through to store")
		} else if cached != nil {
			var intent domain.PaymentIntent
			if err := json.Unmarshal(cached, &intent); err == nil {
				return s.toCheckResult(&intent), nil
			}
		}
	}

	intent, err := s.paymentRepo.FindLatest(ctx, criteria)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find payment intent: %w", err))
	}
	if intent == nil {
		return &ports.CheckResult{}, nil
	}

	if intent.IsExpired(time.Now().UTC()) {
		won, err := s.paymentRepo.MarkExpired(ctx, intent.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark intent expired: %w", err))
		}
		if won {
			intent.Status = domain.PaymentStatusExpired
		} else {
			// Lost the expiry race: a webhook or admin settled the intent
			// between the read and the flip. Answer with the stored truth,
			// never a stale guess.
			current, err := s.paymentRepo.GetByID(ctx, intent.ID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("reload intent: %w", err))
			}
			if current != nil {
				intent = current
			}
		}
	}

	if intent.IsTerminal() {
		s.cacheStatus(ctx, intent)
	}

	return s.toCheckResult(intent), nil
}

// Confirm is the privileged manual path. Unlike the webhook paths it rejects
// intents past their deadline instead of silently ignoring them.
func (s *PaymentServiceImpl) Confirm(ctx context.Context, req ports.ConfirmRequest) (*domain.PaymentIntent, error) {
	criteria := ports.MatchCriteria{TransactionID: req.TransactionID, Description: req.Description}
	if criteria.Empty() {
		return nil, apperror.ErrMissingCriteria()
	}

	intent, err := s.paymentRepo.FindPending(ctx, criteria)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find pending intent: %w", err))
	}
	if intent == nil {
		return nil, apperror.ErrPaymentNotFound()
	}

	now := time.Now().UTC()
	if intent.IsExpired(now) {
		won, err := s.paymentRepo.MarkExpired(ctx, intent.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark intent expired: %w", err))
		}
		if !won {
			// A concurrent completion beat the expiry flip. Report the
			// settled intent instead of calling it dead.
			current, err := s.paymentRepo.GetByID(ctx, intent.ID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("reload intent: %w", err))
			}
			if current != nil && current.Status == domain.PaymentStatusCompleted {
				return current, nil
			}
		}
		return nil, apperror.ErrPaymentExpired()
	}

	confirmedBy := req.ConfirmedBy
	if confirmedBy == "" {
		confirmedBy = domain.ConfirmedByAdmin
	}

	result, err := s.Complete(ctx, intent, ports.CompletionParams{
		ConfirmedBy: confirmedBy,
		PaidAt:      now,
	})
	if err != nil {
		return nil, err
	}
	return result.Intent, nil
}

// Complete is the single idempotent completion primitive. Every confirmation
// path (bank webhook, SePay IPN, admin) funnels through here. The status flip
// is a conditional update that only succeeds while the intent is still
// pending; the caller that wins also credits the wallet and appends the
// DEPOSIT ledger row in the same database transaction. Losers observe the
// already-settled intent and perform no side effects.
func (s *PaymentServiceImpl) Complete(ctx context.Context, intent *domain.PaymentIntent, params ports.CompletionParams) (*ports.CompletionResult, error) {
	if params.PaidAt.IsZero() {
		params.PaidAt = time.Now().UTC()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	won, err := s.paymentRepo.CompletePending(ctx, dbTx, intent.ID, params)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("complete pending intent: %w", err))
	}

	if !won {
		// Lost the race or retried delivery. Return current truth, no credit.
		current, err := s.paymentRepo.GetByID(ctx, intent.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reload intent: %w", err))
		}
		if current == nil {
			return nil, apperror.ErrPaymentNotFound()
		}
		s.log.Info().
			Str("intent_id", intent.ID.String()).
			Str("status", string(current.Status)).
			Msg("completion skipped, intent no longer pending")
		return &ports.CompletionResult{Intent: current, AlreadyCompleted: true}, nil
	}

	if intent.UserID != nil {
		if err := s.walletRepo.Credit(ctx, dbTx, *intent.UserID, intent.Amount); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
		}

		entry := &domain.LedgerTransaction{
			ID:          uuid.New(),
			UserID:      *intent.UserID,
			Type:        domain.LedgerTypeDeposit,
			Amount:      intent.Amount,
			Status:      domain.LedgerStatusCompleted,
			Description: "Nap tien vao vi - " + intent.Description,
			CreatedAt:   params.PaidAt,
		}
		if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	completed := *intent
	completed.Status = domain.PaymentStatusCompleted
	completed.PaidAt = &params.PaidAt
	completed.ConfirmedBy = &params.ConfirmedBy
	if params.Metadata != nil {
		completed.Metadata = params.Metadata
	}

	s.cacheStatus(ctx, &completed)

	s.log.Info().
		Str("intent_id", intent.ID.String()).
		Str("transaction_id", intent.TransactionID).
		Int64("amount", intent.Amount).
		Str("confirmed_by", params.ConfirmedBy).
		Msg("payment completed")

	return &ports.CompletionResult{Intent: &completed}, nil
}

// Purchase debits the wallet for an order. The debit is conditional at the
// store level so concurrent purchases cannot overdraw.
func (s *PaymentServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*domain.LedgerTransaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	ok, err := s.walletRepo.Debit(ctx, dbTx, req.UserID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInsufficientFunds()
	}

	description := req.Description
	if description == "" {
		description = "Thanh toan don hang " + req.OrderID
	}

	entry := &domain.LedgerTransaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Type:        domain.LedgerTypePurchase,
		Amount:      req.Amount,
		Status:      domain.LedgerStatusCompleted,
		OrderID:     &req.OrderID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("order_id", req.OrderID).
		Int64("amount", req.Amount).
		Msg("purchase debited")

	return entry, nil
}

// List fetches intents for the admin panel.
func (s *PaymentServiceImpl) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentIntent, int64, error) {
	intents, total, err := s.paymentRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list intents: %w", err))
	}
	return intents, total, nil
}

func (s *PaymentServiceImpl) toCheckResult(intent *domain.PaymentIntent) *ports.CheckResult {
	return &ports.CheckResult{
		Intent:    intent,
		Confirmed: intent.Status == domain.PaymentStatusCompleted,
		IsExpired: intent.Status == domain.PaymentStatusExpired,
	}
}

// cacheStatus stores a terminal intent for the poll fast path (best-effort).
func (s *PaymentServiceImpl) cacheStatus(ctx context.Context, intent *domain.PaymentIntent) {
	if s.statusCache == nil || intent.TransactionID == "" {
		return
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return
	}
	if err := s.statusCache.Set(ctx, intent.TransactionID, payload, statusCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", intent.TransactionID).Msg("status cache write failed")
	}
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
