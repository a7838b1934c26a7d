package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	e := New("PAY_001", "Invalid amount", http.StatusBadRequest)
	assert.Equal(t, "[PAY_001] Invalid amount", e.Error())
}

func TestAppError_ErrorWithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	e := Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, inner)
	assert.Contains(t, e.Error(), "SYS_001")
	assert.Contains(t, e.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("db down")
	e := InternalError(fmt.Errorf("query payments: %w", inner))
	assert.True(t, errors.Is(e, inner))
}

func TestAppError_As(t *testing.T) {
	var appErr *AppError
	err := error(ErrPaymentNotFound())
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAY_004", appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestErrAmountMismatch_CarriesValues(t *testing.T) {
	e := ErrAmountMismatch(50000, 49999)
	assert.Equal(t, "PAY_006", e.Code)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
	assert.Contains(t, e.Message, "50000")
	assert.Contains(t, e.Message, "49999")
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"invalid signature", ErrInvalidSignature(), http.StatusUnauthorized},
		{"missing signature", ErrMissingSignature(), http.StatusUnauthorized},
		{"invalid amount", ErrInvalidAmount(), http.StatusBadRequest},
		{"missing criteria", ErrMissingCriteria(), http.StatusBadRequest},
		{"not found", ErrPaymentNotFound(), http.StatusNotFound},
		{"expired", ErrPaymentExpired(), http.StatusBadRequest},
		{"account mismatch", ErrAccountMismatch(), http.StatusBadRequest},
		{"insufficient funds", ErrInsufficientFunds(), http.StatusPaymentRequired},
		{"invalid credentials", ErrInvalidCredentials(), http.StatusUnauthorized},
		{"rate limited", ErrRateLimitExceeded(), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}
