package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ngo-donations-app/internal/models"
)

// PaymentEvent is one verified gateway fragment to reconcile. Fragment
// keys are merged shallowly into the stored payment_response; existing
// keys the fragment does not name are preserved.
type PaymentEvent struct {
	EventType string
	OrderID   string
	PaymentID string
	Status    string
	Fragment  map[string]interface{}
}

// ApplyPaymentEvent records the fragment in the audit log and upserts
// the payment request keyed by the gateway order id. Redelivery of the
// same event converges to the same row: the merge is last-write-wins
// per key and the status write is absolute.
func (db *DB) ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*models.DonationPaymentRequest, error) {
	if ev.OrderID == "" {
		return nil, fmt.Errorf("missing gateway order id: %w", ErrValidation)
	}

	fragment, err := json.Marshal(ev.Fragment)
	if err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}

	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconciliation: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_events (gateway_order_id, event_type, payload, signature_valid)
		 VALUES (?, ?, ?, 1)`,
		ev.OrderID, ev.EventType, string(fragment))
	if err != nil {
		return nil, fmt.Errorf("record payment event: %w", err)
	}

	// json_patch does the shallow merge inside the store, so a webhook
	// for an order we have never seen still creates a usable row.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO donation_payment_requests
		     (gateway_order_id, gateway_payment_id, status, payment_response)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(gateway_order_id) DO UPDATE SET
		     status = excluded.status,
		     gateway_payment_id = CASE WHEN excluded.gateway_payment_id != ''
		         THEN excluded.gateway_payment_id
		         ELSE donation_payment_requests.gateway_payment_id END,
		     payment_response = json_patch(donation_payment_requests.payment_response, excluded.payment_response),
		     updated_at = CURRENT_TIMESTAMP`,
		ev.OrderID, ev.PaymentID, ev.Status, string(fragment))
	if err != nil {
		return nil, fmt.Errorf("upsert payment request: %w", err)
	}

	req, err := scanPaymentRequest(tx.QueryRowContext(ctx,
		paymentRequestQuery+` WHERE gateway_order_id = ?`, ev.OrderID))
	if err != nil {
		return nil, fmt.Errorf("reload payment request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconciliation: %w", err)
	}
	return req, nil
}

// OverridePaymentStatus is the manual back-office escape hatch: it
// forces a payment request's status, merging rather than replacing the
// accumulated response blob.
func (db *DB) OverridePaymentStatus(ctx context.Context, orderID, status, paymentID string) (*models.DonationPaymentRequest, error) {
	if !models.ValidPaymentStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, ErrValidation)
	}

	fragment, err := json.Marshal(map[string]interface{}{
		"manual_override": true,
		"override_status": status,
	})
	if err != nil {
		return nil, fmt.Errorf("encode override: %w", err)
	}

	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE donation_payment_requests SET
		     status = ?,
		     gateway_payment_id = CASE WHEN ? != '' THEN ? ELSE gateway_payment_id END,
		     payment_response = json_patch(payment_response, ?),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE gateway_order_id = ?`,
		status, paymentID, paymentID, string(fragment), orderID)
	if err != nil {
		return nil, fmt.Errorf("override payment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	return db.GetPaymentRequest(ctx, orderID)
}

// GetPaymentRequest loads one payment request by gateway order id.
func (db *DB) GetPaymentRequest(ctx context.Context, orderID string) (*models.DonationPaymentRequest, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	req, err := scanPaymentRequest(db.conn.QueryRowContext(ctx,
		paymentRequestQuery+` WHERE gateway_order_id = ?`, orderID))
	if err == ErrNotFound {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return req, err
}

// PaymentEventCount reports how many fragments were logged for an order.
func (db *DB) PaymentEventCount(ctx context.Context, orderID string) (int, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_events WHERE gateway_order_id = ?`, orderID).Scan(&n)
	return n, err
}

const paymentRequestQuery = `
	SELECT id, donation_id, gateway_order_id, gateway_payment_id, amount,
	       status, payment_response, created_at, updated_at
	FROM donation_payment_requests`

func scanPaymentRequest(row *sql.Row) (*models.DonationPaymentRequest, error) {
	var r models.DonationPaymentRequest
	err := row.Scan(&r.ID, &r.DonationID, &r.GatewayOrderID, &r.GatewayPaymentID,
		&r.Amount, &r.Status, &r.PaymentResponse, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
