package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Webhook Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrMissingSignature() *AppError {
	return New("SEC_002", "Signature header missing", http.StatusUnauthorized)
}

// ---- Payment Business Logic (PAY) ----

func ErrInvalidAmount() *AppError {
	return New("PAY_001", "Invalid amount", http.StatusBadRequest)
}

func ErrMissingDescription() *AppError {
	return New("PAY_002", "Transfer description must not be empty", http.StatusBadRequest)
}

func ErrMissingCriteria() *AppError {
	return New("PAY_003", "At least one of transactionId or description is required", http.StatusBadRequest)
}

func ErrPaymentNotFound() *AppError {
	return New("PAY_004", "Payment not found or already confirmed", http.StatusNotFound)
}

func ErrPaymentExpired() *AppError {
	return New("PAY_005", "Payment has expired", http.StatusBadRequest)
}

func ErrAmountMismatch(expected, received int64) *AppError {
	return New("PAY_006",
		fmt.Sprintf("Amount mismatch: expected %d, received %d", expected, received),
		http.StatusBadRequest)
}

func ErrAccountMismatch() *AppError {
	return New("PAY_007", "Destination account number mismatch", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("PAY_008", "Insufficient wallet balance", http.StatusPaymentRequired)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error. Storage failures
// surface through here as transient errors; the core never retries on behalf
// of the caller.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic 400 validation error.
func Validation(message string) *AppError {
	return New("PAY_000", message, http.StatusBadRequest)
}
