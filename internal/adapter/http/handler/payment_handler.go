package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"marketplace-payments/internal/adapter/gateway/sepay"
	"marketplace-payments/internal/adapter/http/dto"
	"marketplace-payments/internal/adapter/http/middleware"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/pkg/apperror"
	"marketplace-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment intent endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
	sepay      *sepay.Client
	baseURL    string
}

// NewPaymentHandler creates a new PaymentHandler. sepayClient may be nil when
// the gateway is not configured.
func NewPaymentHandler(paymentSvc ports.PaymentService, sepayClient *sepay.Client, baseURL string) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, sepay: sepayClient, baseURL: baseURL}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid userId"))
		return
	}

	intent, err := h.paymentSvc.Create(c.Request.Context(), ports.CreatePaymentRequest{
		Amount:        req.Amount,
		Description:   req.Description,
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPaymentResponse(intent))
}

// CreateSePay handles POST /api/v1/payments/sepay: stores the intent and
// returns a signed checkout URL for the redirect.
func (h *PaymentHandler) CreateSePay(c *gin.Context) {
	if h.sepay == nil || !h.sepay.Configured() {
		response.Error(c, apperror.InternalError(fmt.Errorf("sepay gateway not configured")))
		return
	}

	var req dto.SePayCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	userID, err := parseUserID(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid userId"))
		return
	}

	meta, _ := json.Marshal(map[string]string{
		"paymentGateway": "sepay",
		"createdAt":      time.Now().UTC().Format(time.RFC3339),
	})
	metadata := string(meta)

	intent, err := h.paymentSvc.Create(c.Request.Context(), ports.CreatePaymentRequest{
		Amount:        req.Amount,
		Description:   req.Description,
		UserID:        userID,
		BankName:      "SePay",
		AccountNumber: "N/A",
		AccountName:   "SePay Gateway",
		Metadata:      &metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	checkoutURL, err := h.sepay.CheckoutURL(sepay.CheckoutRequest{
		OrderID:     intent.TransactionID,
		Amount:      intent.Amount,
		Description: intent.Description,
		SuccessURL:  callbackURL(req.SuccessURL, h.baseURL, "/payment/success", intent.TransactionID),
		ErrorURL:    callbackURL(req.ErrorURL, h.baseURL, "/payment/error", intent.TransactionID),
		CancelURL:   callbackURL(req.CancelURL, h.baseURL, "/payment/cancel", intent.TransactionID),
		IPNURL:      h.baseURL + "/api/v1/webhooks/sepay",
	})
	if err != nil {
		response.Error(c, apperror.InternalError(fmt.Errorf("build checkout url: %w", err)))
		return
	}

	response.Created(c, dto.SePayCreateResponse{
		Payment:     toPaymentResponse(intent),
		CheckoutURL: checkoutURL,
	})
}

// Check handles GET /api/v1/payments/check. Always 200 for well-formed
// queries; the body says whether the transfer arrived.
func (h *PaymentHandler) Check(c *gin.Context) {
	transactionID := c.Query("transactionId")
	description := c.Query("description")

	result, err := h.paymentSvc.Check(c.Request.Context(), transactionID, description)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Intent == nil {
		response.OK(c, dto.CheckResponse{Message: "payment not found"})
		return
	}

	payment := toPaymentResponse(result.Intent)
	response.OK(c, dto.CheckResponse{
		Confirmed: result.Confirmed,
		IsExpired: result.IsExpired,
		Payment:   &payment,
	})
}

// Confirm handles POST /api/v1/payments/confirm (admin only).
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.TransactionID == "" && req.Description == "" {
		response.Error(c, apperror.ErrMissingCriteria())
		return
	}

	confirmedBy := ""
	if username, ok := c.Get(middleware.CtxUsername); ok {
		confirmedBy, _ = username.(string)
	}

	intent, err := h.paymentSvc.Confirm(c.Request.Context(), ports.ConfirmRequest{
		TransactionID: req.TransactionID,
		Description:   req.Description,
		ConfirmedBy:   confirmedBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentResponse(intent))
}

// List handles GET /api/v1/payments (admin only).
func (h *PaymentHandler) List(c *gin.Context) {
	params := ports.PaymentListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.PaymentStatus(raw)
		switch status {
		case domain.PaymentStatusPending, domain.PaymentStatusCompleted,
			domain.PaymentStatusExpired, domain.PaymentStatusFailed:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("invalid status filter"))
			return
		}
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("invalid userId filter"))
			return
		}
		params.UserID = &id
	}

	intents, total, err := h.paymentSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentResponse, 0, len(intents))
	for i := range intents {
		items = append(items, toPaymentResponse(&intents[i]))
	}

	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	response.OK(c, dto.PaymentListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// toPaymentResponse converts domain.PaymentIntent to its wire shape.
func toPaymentResponse(p *domain.PaymentIntent) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:            p.ID.String(),
		TransactionID: p.TransactionID,
		Description:   p.Description,
		Amount:        p.Amount,
		Status:        string(p.Status),
		BankName:      p.BankName,
		AccountNumber: p.AccountNumber,
		AccountName:   p.AccountName,
		QRGeneratedAt: p.QRGeneratedAt.Format(time.RFC3339),
		ExpiresAt:     p.ExpiresAt.Format(time.RFC3339),
		ConfirmedBy:   p.ConfirmedBy,
	}
	if p.PaidAt != nil {
		s := p.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

func parseUserID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func callbackURL(override, baseURL, path, transactionID string) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf("%s%s?transactionId=%s", baseURL, path, transactionID)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
