package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/adapter/http/dto"
	"marketplace-payments/internal/core/domain"
	"marketplace-payments/internal/core/ports"
	"marketplace-payments/pkg/apperror"
	"marketplace-payments/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives inbound payment notifications. These routes are
// never rate limited and never behind auth; authenticity comes from the
// signature check inside the service.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
	signatures ports.SignatureService
	webhookCfg config.WebhookConfig
	log        zerolog.Logger
}

func NewWebhookHandler(webhookSvc ports.WebhookService, signatures ports.SignatureService, webhookCfg config.WebhookConfig, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc, signatures: signatures, webhookCfg: webhookCfg, log: log}
}

// Bank handles POST /api/v1/webhooks/bank. The raw body is read before
// any parsing because the signature covers the exact bytes on the wire.
func (h *WebhookHandler) Bank(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unreadable request body"))
		return
	}

	result, err := h.webhookSvc.HandleBank(c.Request.Context(), rawBody, flattenHeaders(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	ackResult(c, result)
}

// SePay handles POST /api/v1/webhooks/sepay. The gateway keeps retrying on
// any non-2xx answer, so an internal failure is logged and acknowledged with
// a 200; only explicit payload rejections answer with their own status.
func (h *WebhookHandler) SePay(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unreadable request body"))
		return
	}

	result, err := h.webhookSvc.HandleSePay(c.Request.Context(), rawBody)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus >= http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("sepay ipn processing failed, acknowledged to stop retries")
			response.Ack(c, false, "internal error", nil)
			return
		}
		response.Error(c, err)
		return
	}

	ackResult(c, result)
}

// Test handles POST /api/v1/webhooks/test: a development-only simulator that
// builds a bank notification, signs it with the configured secret and feeds
// it through the real bank path in process. Not registered in release mode.
func (h *WebhookHandler) Test(c *gin.Context) {
	var req dto.TestWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.TransactionID == "" && req.Description == "" {
		response.Error(c, apperror.ErrMissingCriteria())
		return
	}

	payload := domain.BankWebhook{
		TransactionID: req.TransactionID,
		Description:   req.Description,
		Amount:        req.Amount,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Status:        "success",
	}
	rawBody, err := json.Marshal(payload)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	headers := flattenHeaders(c)
	if h.webhookCfg.Secret != "" {
		headers[h.webhookCfg.HeaderName] = h.signatures.Sign(h.webhookCfg.Secret, string(rawBody), h.webhookCfg.Algorithm)
	}

	result, err := h.webhookSvc.HandleBank(c.Request.Context(), rawBody, headers)
	if err != nil {
		response.Error(c, err)
		return
	}

	ackResult(c, result)
}

// ackResult maps a webhook outcome to the provider-facing acknowledgement.
// Every handled notification gets a 200 so the sender stops retrying.
func ackResult(c *gin.Context, result *ports.WebhookResult) {
	var payment interface{}
	if result.Intent != nil {
		payment = toPaymentResponse(result.Intent)
	}

	switch result.Outcome {
	case ports.WebhookOutcomeCompleted:
		response.Ack(c, true, "payment confirmed", payment)
	case ports.WebhookOutcomeAlreadyProcessed:
		response.Ack(c, true, "payment already processed", payment)
	case ports.WebhookOutcomeNotFound:
		response.Ack(c, false, "no matching pending payment", nil)
	default:
		response.Ack(c, false, "notification ignored", nil)
	}
}

// flattenHeaders lowers the header map to single first values with lowercase
// names. net/http canonicalises inbound names (x-signature arrives as
// X-Signature), so the names are folded here to keep the signature lookup
// independent of transport casing.
func flattenHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	return headers
}
