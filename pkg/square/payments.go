package square

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
)

const paymentStatusCompleted = "COMPLETED"

// PaymentCreateParams describes one card charge. ReferenceID carries the
// local payment method id so webhooks can find the tender again.
type PaymentCreateParams struct {
	AmountMinor    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentCreateParams) request() *sq.CreatePaymentRequest {
	key := strings.TrimSpace(p.IdempotencyKey)
	if key == "" {
		key = "payment-" + uuid.NewString()
	}
	autocomplete := true
	req := &sq.CreatePaymentRequest{
		IdempotencyKey: key,
		SourceID:       p.SourceID,
		Autocomplete:   &autocomplete,
		LocationID:     optional(p.LocationID),
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
	}
	if p.AmountMinor > 0 {
		amount := p.AmountMinor
		currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
		if currency == "" {
			currency = sq.Currency("KRW")
		}
		req.AmountMoney = &sq.Money{Amount: &amount, Currency: &currency}
	}
	return req
}

func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*sq.Payment, error) {
	req := params.request()
	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.trace(ctx, "create_payment", err, map[string]any{"reference_id": params.ReferenceID})
		return nil, mapSquareError(err, "create payment")
	}
	payment := resp.GetPayment()
	c.trace(ctx, "create_payment", nil, map[string]any{
		"location_id":     params.LocationID,
		"reference_id":    params.ReferenceID,
		"amount":          params.AmountMinor,
		"idempotency_key": req.IdempotencyKey,
		"payment_id":      value(payment.GetID()),
		"status":          value(payment.GetStatus()),
	})
	return payment, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		c.trace(ctx, "get_payment", err, map[string]any{"payment_id": paymentID})
		return nil, mapSquareError(err, "get payment")
	}
	payment := resp.GetPayment()
	c.trace(ctx, "get_payment", nil, map[string]any{
		"payment_id": paymentID,
		"status":     value(payment.GetStatus()),
	})
	return payment, nil
}

// IsCompleted reports whether Square captured the funds.
func IsCompleted(payment *sq.Payment) bool {
	return payment != nil && strings.EqualFold(value(payment.GetStatus()), paymentStatusCompleted)
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
