package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"ngo-donations-app/internal/models"
)

// CreateDonationParams carries a new donation and its line items.
type CreateDonationParams struct {
	CampaignID   int64
	DonorName    string
	DonorEmail   string
	DonorPhone   string
	DonationDate string // YYYY-MM-DD, empty means today
	Source       string // 'online' or 'manual'
	Items        []DonationItemParams
}

// DonationItemParams is one product/quantity pair in a donation.
type DonationItemParams struct {
	ProductID int64
	Quantity  int
}

// CreateDonation inserts the donation, its items and a payment request,
// and bumps the campaign ledger, all in one transaction. The campaign
// totals move via in-store expressions so concurrent donations never
// lose increments. Manual entries are recorded as already paid.
func (db *DB) CreateDonation(ctx context.Context, p CreateDonationParams) (*models.Donation, *models.DonationPaymentRequest, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin donation create: %w", err)
	}
	defer tx.Rollback()

	var campaignID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM campaigns WHERE id = ? AND status = 'active'`, p.CampaignID).Scan(&campaignID)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("campaign %d: %w", p.CampaignID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("verify campaign: %w", err)
	}

	// Price every item against the campaign's own product list.
	type pricedItem struct {
		productID int64
		quantity  int
		total     float64
	}
	var (
		priced []pricedItem
		amount float64
	)
	for _, item := range p.Items {
		var price float64
		err := tx.QueryRowContext(ctx,
			`SELECT price FROM campaign_products WHERE id = ? AND campaign_id = ?`,
			item.ProductID, p.CampaignID).Scan(&price)
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("product %d under campaign %d: %w", item.ProductID, p.CampaignID, ErrNotFound)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("price product %d: %w", item.ProductID, err)
		}
		total := price * float64(item.Quantity)
		priced = append(priced, pricedItem{item.ProductID, item.Quantity, total})
		amount += total
	}

	receipt := "RCPT-" + strings.ToUpper(uuid.NewString()[:8])
	source := p.Source
	if source == "" {
		source = "online"
	}
	donationDate := p.DonationDate
	if donationDate == "" {
		donationDate = "now"
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO donations
		     (campaign_id, receipt_number, donor_name, donor_email, donor_phone,
		      amount, source, donation_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, datetime(?))`,
		p.CampaignID, receipt, p.DonorName, p.DonorEmail, p.DonorPhone,
		amount, source, donationDate)
	if err != nil {
		return nil, nil, fmt.Errorf("insert donation: %w", err)
	}
	donationID, _ := res.LastInsertId()

	for _, item := range priced {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO donation_items (donation_id, product_id, quantity, total_price)
			 VALUES (?, ?, ?, ?)`,
			donationID, item.productID, item.quantity, item.total)
		if err != nil {
			return nil, nil, fmt.Errorf("insert donation item: %w", err)
		}
	}

	// Gateway order ids for manual entries are synthetic; online ones
	// are replaced once the gateway order is opened client-side.
	orderID := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	status := models.PaymentCreated
	if source == "manual" {
		status = models.PaymentPaid
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO donation_payment_requests (donation_id, gateway_order_id, amount, status)
		 VALUES (?, ?, ?, ?)`,
		donationID, orderID, amount, status)
	if err != nil {
		return nil, nil, fmt.Errorf("insert payment request: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE campaigns SET
		     total_raised = total_raised + ?,
		     donor_count = donor_count + 1
		 WHERE id = ?`, amount, p.CampaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("update campaign ledger: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE campaigns SET progress_percentage =
		     CASE WHEN goal_amount > 0
		          THEN MIN(100, CAST(ROUND(total_raised * 100.0 / goal_amount) AS INTEGER))
		          ELSE 0 END
		 WHERE id = ?`, p.CampaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("recompute campaign progress: %w", err)
	}

	donation := &models.Donation{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, campaign_id, receipt_number, donor_name, donor_email,
		        donor_phone, amount, source, donation_date, created_at
		 FROM donations WHERE id = ?`, donationID).
		Scan(&donation.ID, &donation.CampaignID, &donation.ReceiptNumber,
			&donation.DonorName, &donation.DonorEmail, &donation.DonorPhone,
			&donation.Amount, &donation.Source, &donation.DonationDate,
			&donation.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("reload donation: %w", err)
	}

	request, err := scanPaymentRequest(tx.QueryRowContext(ctx,
		paymentRequestQuery+` WHERE gateway_order_id = ?`, orderID))
	if err != nil {
		return nil, nil, fmt.Errorf("reload payment request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit donation create: %w", err)
	}
	return donation, request, nil
}

// ListDonationItems returns the line items of one donation.
func (db *DB) ListDonationItems(ctx context.Context, donationID int64) ([]models.DonationItem, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, donation_id, product_id, quantity, total_price, fulfillment_status
		 FROM donation_items WHERE donation_id = ? ORDER BY id ASC`, donationID)
	if err != nil {
		return nil, fmt.Errorf("list donation items: %w", err)
	}
	defer rows.Close()

	var items []models.DonationItem
	for rows.Next() {
		var it models.DonationItem
		if err := rows.Scan(&it.ID, &it.DonationID, &it.ProductID, &it.Quantity,
			&it.TotalPrice, &it.FulfillmentStatus); err != nil {
			return nil, fmt.Errorf("scan donation item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListDonations returns donations for one campaign, newest first.
func (db *DB) ListDonations(ctx context.Context, campaignID int64) ([]models.Donation, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, campaign_id, receipt_number, donor_name, donor_email,
		        donor_phone, amount, source, donation_date, created_at
		 FROM donations WHERE campaign_id = ?
		 ORDER BY donation_date DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	var donations []models.Donation
	for rows.Next() {
		var d models.Donation
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.ReceiptNumber, &d.DonorName,
			&d.DonorEmail, &d.DonorPhone, &d.Amount, &d.Source, &d.DonationDate,
			&d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}
