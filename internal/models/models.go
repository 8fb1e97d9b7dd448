package models

import (
	"time"
)

// Fulfillment status of a DonationItem. Transitions are monotonic:
// pending -> in_batch -> distributed.
const (
	FulfillmentPending     = "pending"
	FulfillmentInBatch     = "in_batch"
	FulfillmentDistributed = "distributed"
)

// BatchItem status within a distribution batch.
const (
	BatchItemAllocated   = "allocated"
	BatchItemPrepared    = "prepared"
	BatchItemDistributed = "distributed"
)

// DistributionBatch status, always derived from its items.
const (
	BatchPlanning   = "planning"
	BatchPrepared   = "prepared"
	BatchInProgress = "in_progress"
	BatchCompleted  = "completed"
)

// DonationPaymentRequest status.
const (
	PaymentCreated   = "created"
	PaymentAttempted = "attempted"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

// Campaign represents a fundraising cause with a goal and running totals.
// Totals are mutated only through in-store expressions.
type Campaign struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	GoalAmount         float64   `json:"goal_amount"`
	TotalRaised        float64   `json:"total_raised"`
	DonorCount         int       `json:"donor_count"`
	ProgressPercentage int       `json:"progress_percentage"`
	Status             string    `json:"status"` // 'active', 'closed'
	CreatedAt          time.Time `json:"created_at"`
}

// CampaignProduct is a sponsorable line item belonging to one campaign.
type CampaignProduct struct {
	ID         int64   `json:"id"`
	CampaignID int64   `json:"campaign_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	StockCount int     `json:"stock_count"`
}

// Donation is one donor's contribution to a campaign.
type Donation struct {
	ID            int64     `json:"id"`
	CampaignID    int64     `json:"campaign_id"`
	ReceiptNumber string    `json:"receipt_number"`
	DonorName     string    `json:"donor_name"`
	DonorEmail    string    `json:"donor_email"`
	DonorPhone    string    `json:"donor_phone"`
	Amount        float64   `json:"amount"`
	Source        string    `json:"source"` // 'online', 'manual'
	DonationDate  string    `json:"donation_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// DonationItem is a quantity of a campaign product purchased in one donation.
type DonationItem struct {
	ID                int64   `json:"id"`
	DonationID        int64   `json:"donation_id"`
	ProductID         int64   `json:"product_id"`
	Quantity          int     `json:"quantity"`
	TotalPrice        float64 `json:"total_price"`
	FulfillmentStatus string  `json:"fulfillment_status"`
}

// DistributionBatch is a planned fulfillment run for one campaign product
// on a target date.
type DistributionBatch struct {
	ID                 int64     `json:"id"`
	CampaignID         int64     `json:"campaign_id"`
	ProductID          int64     `json:"product_id"`
	BatchName          string    `json:"batch_name"`
	Description        string    `json:"description,omitempty"`
	PlannedDate        string    `json:"planned_distribution_date"`
	Status             string    `json:"status"`
	TotalItems         int       `json:"total_items"`
	TotalValue         float64   `json:"total_value"`
	ProgressPercentage int       `json:"progress_percentage"`
	CreatedAt          time.Time `json:"created_at"`
}

// BatchItem binds one DonationItem to one DistributionBatch.
type BatchItem struct {
	ID             int64     `json:"id"`
	BatchID        int64     `json:"batch_id"`
	DonationItemID int64     `json:"donation_item_id"`
	Quantity       int       `json:"quantity"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`

	// Virtual fields (joined for the batch detail view)
	ProductName string  `json:"product_name,omitempty"`
	DonorName   string  `json:"donor_name,omitempty"`
	TotalPrice  float64 `json:"total_price,omitempty"`
}

// DonationPaymentRequest is one payment-gateway order attempt. Its
// payment_response blob accumulates gateway callbacks via shallow merge,
// never replacement.
type DonationPaymentRequest struct {
	ID               int64     `json:"id"`
	DonationID       *int64    `json:"donation_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Amount           float64   `json:"amount"`
	Status           string    `json:"status"`
	PaymentResponse  string    `json:"payment_response"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AssignmentSummary reports what a batch allocation picked up.
type AssignmentSummary struct {
	ItemsAssigned int     `json:"items_assigned"`
	TotalQuantity int     `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// BatchProgress is the recomputed aggregate snapshot after a progress update.
type BatchProgress struct {
	BatchID            int64  `json:"batch_id"`
	Status             string `json:"batch_status"`
	TotalItems         int    `json:"total_items"`
	AllocatedCount     int    `json:"allocated_count"`
	PreparedCount      int    `json:"prepared_count"`
	DistributedCount   int    `json:"distributed_count"`
	ProgressPercentage int    `json:"progress_percentage"`
}

// UpdatedBatchItem reports a single item transition.
type UpdatedBatchItem struct {
	BatchID           int64  `json:"batch_id"`
	DonationItemID    int64  `json:"donation_item_id"`
	PreviousStatus    string `json:"previous_status"`
	Status            string `json:"status"`
	FulfillmentStatus string `json:"fulfillment_status"`
}

// ValidBatchItemStatus reports whether s is one of the three item statuses.
func ValidBatchItemStatus(s string) bool {
	return s == BatchItemAllocated || s == BatchItemPrepared || s == BatchItemDistributed
}

// ValidPaymentStatus reports whether s is one of the payment request statuses.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentCreated, PaymentAttempted, PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}
