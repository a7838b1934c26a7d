package handler

import (
	"strconv"
	"time"

	"marketplace-payments/internal/adapter/http/dto"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/pkg/apperror"
	"marketplace-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler exposes wallet balance, purchase and ledger endpoints.
type WalletHandler struct {
	paymentSvc ports.PaymentService
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
}

func NewWalletHandler(paymentSvc ports.PaymentService, walletRepo ports.WalletRepository, ledgerRepo ports.LedgerRepository) *WalletHandler {
	return &WalletHandler{paymentSvc: paymentSvc, walletRepo: walletRepo, ledgerRepo: ledgerRepo}
}

// Purchase handles POST /api/v1/wallet/purchase: debits the balance and
// appends a PURCHASE ledger row, or fails whole when funds are short.
func (h *WalletHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid userId"))
		return
	}

	entry, err := h.paymentSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		UserID:      userID,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toLedgerResponse(entry))
}

// Balance handles GET /api/v1/wallet/:userId/balance. Users without a wallet
// row read as zero.
func (h *WalletHandler) Balance(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid userId"))
		return
	}

	balance, err := h.walletRepo.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance})
}

// Ledger handles GET /api/v1/wallet/:userId/ledger.
func (h *WalletHandler) Ledger(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid userId"))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := h.ledgerRepo.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerResponse(&entries[i]))
	}
	response.OK(c, items)
}

func toLedgerResponse(e *domain.LedgerTransaction) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:          e.ID.String(),
		Type:        string(e.Type),
		Amount:      e.Amount,
		Status:      string(e.Status),
		OrderID:     e.OrderID,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}
