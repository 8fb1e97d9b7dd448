package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Razorpay webhook event types the reconciler acts on. Anything else
// is acknowledged and ignored.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// VerifyWebhookSignature checks the X-Razorpay-Signature header: a hex
// HMAC-SHA256 of the raw body keyed by the shared webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent mirrors Razorpay's webhook envelope. Only the entities
// the reconciler reads are mapped.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity OrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// PaymentEntity is the payment object inside captured/failed events.
// Amount is in paise, per the gateway.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

// OrderEntity is the order object inside order.paid events.
type OrderEntity struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

// ParseWebhookEvent decodes the raw body into the envelope.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("webhook body has no event type")
	}
	return &ev, nil
}

// OrderID returns the gateway order id the event refers to, whichever
// entity carries it.
func (ev *WebhookEvent) OrderID() string {
	if id := ev.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return ev.Payload.Order.Entity.ID
}
