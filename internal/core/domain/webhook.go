package domain

// BankWebhook is the JSON body of a bank-style transfer notification.
// Field presence varies by bank; matching falls back from TransactionID to
// Description.
type BankWebhook struct {
	TransactionID     string `json:"transactionId"`
	Description       string `json:"description"`
	Amount            int64  `json:"amount"`
	AccountNumber     string `json:"accountNumber"`
	ReferenceNumber   string `json:"referenceNumber"`
	BankTransactionID string `json:"bankTransactionId"`
	Timestamp         string `json:"timestamp"`
	Status            string `json:"status"`
}

// SePay IPN constants. Only a fully captured, approved ORDER_PAID
// notification triggers matching; everything else is acknowledged unhandled.
const (
	SePayNotificationOrderPaid = "ORDER_PAID"
	SePayOrderStatusCaptured   = "CAPTURED"
	SePayTxStatusApproved      = "APPROVED"
)

// SePayIPN is the JSON body of a SePay Instant Payment Notification.
type SePayIPN struct {
	Timestamp        int64            `json:"timestamp"`
	NotificationType string           `json:"notification_type"`
	Order            SePayOrder       `json:"order"`
	Transaction      SePayTransaction `json:"transaction"`
}

// SePayOrder is the order block of an IPN.
type SePayOrder struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	OrderStatus   string `json:"order_status"`
	OrderCurrency string `json:"order_currency"`
	OrderAmount   string `json:"order_amount"` // decimal string, e.g. "100000.00"
	InvoiceNumber string `json:"order_invoice_number"`
	Description   string `json:"order_description"`
}

// SePayTransaction is the transaction block of an IPN.
type SePayTransaction struct {
	ID            string `json:"id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"transaction_status"`
	Amount        string `json:"transaction_amount"`
	Currency      string `json:"transaction_currency"`
}

// IsPaid reports whether the IPN represents a settled payment.
func (n *SePayIPN) IsPaid() bool {
	return n.NotificationType == SePayNotificationOrderPaid &&
		n.Order.OrderStatus == SePayOrderStatusCaptured &&
		n.Transaction.Status == SePayTxStatusApproved
}
