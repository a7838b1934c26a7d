package sepay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"marketplace-payments/config"
)

const (
	productionBaseURL = "https://pay.sepay.vn/v1/checkout/init"
	sandboxBaseURL    = "https://sandbox.sepay.vn/v1/checkout/init"
)

// Client builds signed SePay checkout URLs. The gateway redirects the payer
// to the returned URL; settlement comes back asynchronously over the IPN.
type Client struct {
	merchantID string
	secretKey  string
	baseURL    string
}

// NewClient creates a SePay checkout client.
func NewClient(cfg config.SePayConfig) *Client {
	baseURL := sandboxBaseURL
	if cfg.Env == "production" {
		baseURL = productionBaseURL
	}
	return &Client{
		merchantID: cfg.MerchantID,
		secretKey:  cfg.SecretKey,
		baseURL:    baseURL,
	}
}

// Configured reports whether gateway credentials are present.
func (c *Client) Configured() bool {
	return c.merchantID != "" && c.secretKey != ""
}

// CheckoutRequest carries the order fields for a checkout URL.
type CheckoutRequest struct {
	OrderID     string
	Amount      int64
	Description string
	Currency    string // empty = VND
	SuccessURL  string
	ErrorURL    string
	CancelURL   string
	IPNURL      string
}

// CheckoutURL signs the checkout parameters and returns the redirect URL.
func (c *Client) CheckoutURL(req CheckoutRequest) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("sepay gateway not configured")
	}
	if req.OrderID == "" {
		return "", fmt.Errorf("order id required")
	}

	currency := req.Currency
	if currency == "" {
		currency = "VND"
	}

	params := map[string]string{
		"merchant_id":       c.merchantID,
		"order_id":          req.OrderID,
		"order_amount":      fmt.Sprintf("%d", req.Amount),
		"order_description": req.Description,
		"order_currency":    currency,
		"success_url":       req.SuccessURL,
		"error_url":         req.ErrorURL,
		"cancel_url":        req.CancelURL,
	}
	if req.IPNURL != "" {
		params["ipn_url"] = req.IPNURL
	}

	params["signature"] = c.sign(params)

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	return c.baseURL + "?" + query.Encode(), nil
}

// sign computes the HMAC-SHA256 of the parameters joined as key=value pairs
// in key order. The signature covers the raw values, not the URL-encoded
// query string.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}
