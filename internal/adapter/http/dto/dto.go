package dto

// CreatePaymentRequest is the request body for issuing a payment intent.
// Bank fields are optional; unset ones fall back to the configured
// destination account.
type CreatePaymentRequest struct {
	Amount        int64   `json:"amount" binding:"required,gt=0"`
	Description   string  `json:"description" binding:"required,max=255"`
	UserID        *string `json:"userId,omitempty" binding:"omitempty,uuid"`
	BankName      string  `json:"bankName,omitempty" binding:"max=100"`
	AccountNumber string  `json:"accountNumber,omitempty" binding:"max=50"`
	AccountName   string  `json:"accountName,omitempty" binding:"max=100"`
}

// SePayCreateRequest is the request body for a gateway checkout deposit.
type SePayCreateRequest struct {
	Amount      int64   `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required,max=255"`
	UserID      *string `json:"userId,omitempty" binding:"omitempty,uuid"`
	SuccessURL  string  `json:"successUrl,omitempty" binding:"omitempty,safe_url"`
	ErrorURL    string  `json:"errorUrl,omitempty" binding:"omitempty,safe_url"`
	CancelURL   string  `json:"cancelUrl,omitempty" binding:"omitempty,safe_url"`
}

// ConfirmPaymentRequest is the request body for a manual admin confirmation.
// At least one identifier must be present; the handler enforces that.
type ConfirmPaymentRequest struct {
	TransactionID string `json:"transactionId,omitempty" binding:"max=100"`
	Description   string `json:"description,omitempty" binding:"max=255"`
}

// PurchaseRequest is the request body for a wallet debit.
type PurchaseRequest struct {
	UserID      string `json:"userId" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	OrderID     string `json:"orderId" binding:"required,max=100"`
	Description string `json:"description,omitempty" binding:"max=255"`
}

// LoginRequest is the request body for admin login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// PaymentResponse is the wire shape of a payment intent.
type PaymentResponse struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transactionId"`
	Description   string  `json:"description"`
	Amount        int64   `json:"amount"`
	Status        string  `json:"status"`
	BankName      string  `json:"bankName"`
	AccountNumber string  `json:"accountNumber"`
	AccountName   string  `json:"accountName"`
	QRGeneratedAt string  `json:"qrGeneratedAt"`
	ExpiresAt     string  `json:"expiresAt"`
	PaidAt        *string `json:"paidAt,omitempty"`
	ConfirmedBy   *string `json:"confirmedBy,omitempty"`
}

// CheckResponse is the poll endpoint answer.
type CheckResponse struct {
	Confirmed bool             `json:"confirmed"`
	IsExpired bool             `json:"isExpired"`
	Payment   *PaymentResponse `json:"payment,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// SePayCreateResponse pairs the stored intent with the gateway redirect.
type SePayCreateResponse struct {
	Payment     PaymentResponse `json:"payment"`
	CheckoutURL string          `json:"checkoutUrl"`
}

// PaymentListResponse wraps a paginated payment list.
type PaymentListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// BalanceResponse is the wallet balance answer.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerEntryResponse is the wire shape of one ledger row.
type LedgerEntryResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Amount      int64   `json:"amount"`
	Status      string  `json:"status"`
	OrderID     *string `json:"orderId,omitempty"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"createdAt"`
}

// TestWebhookRequest drives the development webhook simulator.
type TestWebhookRequest struct {
	TransactionID string `json:"transactionId,omitempty" binding:"max=100"`
	Description   string `json:"description,omitempty" binding:"max=255"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
}
