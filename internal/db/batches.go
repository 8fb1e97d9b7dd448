package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"

	"ngo-donations-app/internal/models"
)

// CreateBatchParams carries the allocator input. PlannedDate is a
// YYYY-MM-DD string, already validated by the handler.
type CreateBatchParams struct {
	CampaignID  int64
	ProductID   int64
	BatchName   string
	PlannedDate string
	Description string
}

// CreateBatch creates a distribution batch and assigns every eligible
// pending donation item to it, oldest donations first. The whole
// allocation runs in one transaction: batch insert, item assignment,
// fulfillment updates and aggregate recompute commit or roll back
// together. A concurrent allocator racing for the same items loses on
// the batch_items uniqueness constraint instead of double-assigning.
func (db *DB) CreateBatch(ctx context.Context, p CreateBatchParams) (*models.DistributionBatch, *models.AssignmentSummary, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback()

	// Campaign and product must exist, and the product must belong to
	// the campaign.
	var productID int64
	err = tx.QueryRowContext(ctx,
		`SELECT p.id FROM campaign_products p
		 JOIN campaigns c ON p.campaign_id = c.id
		 WHERE p.id = ? AND c.id = ?`,
		p.ProductID, p.CampaignID).Scan(&productID)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("campaign %d / product %d: %w", p.CampaignID, p.ProductID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("verify campaign product: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO distribution_batches
		 (campaign_id, product_id, batch_name, description, planned_distribution_date)
		 VALUES (?, ?, ?, ?, ?)`,
		p.CampaignID, p.ProductID, p.BatchName, p.Description, p.PlannedDate)
	if err != nil {
		return nil, nil, fmt.Errorf("insert batch: %w", err)
	}
	batchID, _ := res.LastInsertId()

	// Candidates: pending items for this product whose donation arrived
	// on or before the planned date and which are not in any batch yet.
	// FIFO by donation date so the oldest donations are served first.
	rows, err := tx.QueryContext(ctx,
		`SELECT di.id, di.quantity, di.total_price
		 FROM donation_items di
		 JOIN donations d ON di.donation_id = d.id
		 WHERE di.product_id = ?
		   AND di.fulfillment_status = ?
		   AND date(d.donation_date) <= date(?)
		   AND NOT EXISTS (SELECT 1 FROM batch_items bi WHERE bi.donation_item_id = di.id)
		 ORDER BY d.donation_date ASC, di.id ASC`,
		p.ProductID, models.FulfillmentPending, p.PlannedDate)
	if err != nil {
		return nil, nil, fmt.Errorf("select candidates: %w", err)
	}

	type candidate struct {
		id       int64
		quantity int
		price    float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.quantity, &c.price); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate candidates: %w", err)
	}

	summary := &models.AssignmentSummary{}
	if len(candidates) > 0 {
		insert, err := tx.PrepareContext(ctx,
			`INSERT INTO batch_items (batch_id, donation_item_id, quantity, status)
			 VALUES (?, ?, ?, ?)`)
		if err != nil {
			return nil, nil, fmt.Errorf("prepare assignment: %w", err)
		}
		mark, err := tx.PrepareContext(ctx,
			`UPDATE donation_items SET fulfillment_status = ? WHERE id = ?`)
		if err != nil {
			insert.Close()
			return nil, nil, fmt.Errorf("prepare fulfillment update: %w", err)
		}

		for _, c := range candidates {
			if _, err := insert.ExecContext(ctx, batchID, c.id, c.quantity, models.BatchItemAllocated); err != nil {
				insert.Close()
				mark.Close()
				return nil, nil, fmt.Errorf("assign item %d: %w", c.id, err)
			}
			if _, err := mark.ExecContext(ctx, models.FulfillmentInBatch, c.id); err != nil {
				insert.Close()
				mark.Close()
				return nil, nil, fmt.Errorf("mark item %d in batch: %w", c.id, err)
			}
			summary.ItemsAssigned++
			summary.TotalQuantity += c.quantity
			summary.TotalValue += c.price
		}
		insert.Close()
		mark.Close()

		_, err = tx.ExecContext(ctx,
			`UPDATE distribution_batches SET total_items = ?, total_value = ? WHERE id = ?`,
			summary.ItemsAssigned, summary.TotalValue, batchID)
		if err != nil {
			return nil, nil, fmt.Errorf("write batch aggregates: %w", err)
		}
	}

	batch, err := scanBatch(tx.QueryRowContext(ctx, batchQuery+` WHERE id = ?`, batchID))
	if err != nil {
		return nil, nil, fmt.Errorf("reload batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit allocation: %w", err)
	}
	return batch, summary, nil
}

var transitionRank = map[string]int{
	models.BatchItemAllocated:   0,
	models.BatchItemPrepared:    1,
	models.BatchItemDistributed: 2,
}

// UpdateBatchProgress advances one batch item, propagates the change to
// the owning donation item and recomputes the batch's derived status
// and progress percentage, all in one transaction.
func (db *DB) UpdateBatchProgress(ctx context.Context, batchID, donationItemID int64, newStatus string) (*models.UpdatedBatchItem, *models.BatchProgress, error) {
	if !models.ValidBatchItemStatus(newStatus) {
		return nil, nil, fmt.Errorf("status %q: %w", newStatus, ErrValidation)
	}

	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin progress update: %w", err)
	}
	defer tx.Rollback()

	var itemID int64
	var prevStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT id, status FROM batch_items WHERE batch_id = ? AND donation_item_id = ?`,
		batchID, donationItemID).Scan(&itemID, &prevStatus)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("batch %d item %d: %w", batchID, donationItemID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load batch item: %w", err)
	}

	// TODO: product has not decided whether regressions are a manual
	// correction feature or a bug; strict mode is opt-in until then.
	if db.StrictTransitions && transitionRank[newStatus] < transitionRank[prevStatus] {
		return nil, nil, fmt.Errorf("cannot move item from %s back to %s: %w", prevStatus, newStatus, ErrValidation)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE batch_items SET status = ? WHERE id = ?`, newStatus, itemID); err != nil {
		return nil, nil, fmt.Errorf("update batch item: %w", err)
	}

	fulfillment := models.FulfillmentInBatch
	if newStatus == models.BatchItemDistributed {
		fulfillment = models.FulfillmentDistributed
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE donation_items SET fulfillment_status = ? WHERE id = ?`,
		fulfillment, donationItemID); err != nil {
		return nil, nil, fmt.Errorf("update fulfillment: %w", err)
	}

	progress, err := recomputeBatch(ctx, tx, batchID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit progress update: %w", err)
	}

	updated := &models.UpdatedBatchItem{
		BatchID:           batchID,
		DonationItemID:    donationItemID,
		PreviousStatus:    prevStatus,
		Status:            newStatus,
		FulfillmentStatus: fulfillment,
	}
	return updated, progress, nil
}

// recomputeBatch rederives the batch status and progress percentage
// from its item counts and writes them back.
func recomputeBatch(ctx context.Context, tx *sql.Tx, batchID int64) (*models.BatchProgress, error) {
	p := &models.BatchProgress{BatchID: batchID}
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'allocated'), 0),
		        COALESCE(SUM(status = 'prepared'), 0),
		        COALESCE(SUM(status = 'distributed'), 0)
		 FROM batch_items WHERE batch_id = ?`, batchID).
		Scan(&p.TotalItems, &p.AllocatedCount, &p.PreparedCount, &p.DistributedCount)
	if err != nil {
		return nil, fmt.Errorf("count batch items: %w", err)
	}

	if p.TotalItems > 0 {
		p.ProgressPercentage = int(math.Round(float64(p.DistributedCount) * 100 / float64(p.TotalItems)))
	}

	switch {
	case p.TotalItems > 0 && p.DistributedCount == p.TotalItems:
		p.Status = models.BatchCompleted
	case p.DistributedCount > 0:
		p.Status = models.BatchInProgress
	case p.PreparedCount > 0:
		p.Status = models.BatchPrepared
	default:
		p.Status = models.BatchPlanning
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE distribution_batches SET status = ?, progress_percentage = ? WHERE id = ?`,
		p.Status, p.ProgressPercentage, batchID)
	if err != nil {
		return nil, fmt.Errorf("write batch status: %w", err)
	}
	return p, nil
}

const batchQuery = `
	SELECT id, campaign_id, product_id, batch_name, description,
	       planned_distribution_date, status, total_items, total_value,
	       progress_percentage, created_at
	FROM distribution_batches`

func scanBatch(row *sql.Row) (*models.DistributionBatch, error) {
	var b models.DistributionBatch
	err := row.Scan(&b.ID, &b.CampaignID, &b.ProductID, &b.BatchName, &b.Description,
		&b.PlannedDate, &b.Status, &b.TotalItems, &b.TotalValue,
		&b.ProgressPercentage, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BatchFilter narrows and orders the batch listing.
type BatchFilter struct {
	CampaignID int64
	Status     string
	DateFrom   string
	DateTo     string
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

var batchSortColumns = map[string]string{
	"created_at":                "created_at",
	"planned_distribution_date": "planned_distribution_date",
	"batch_name":                "batch_name",
	"total_value":               "total_value",
	"status":                    "status",
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// BatchStatistics aggregates the filtered batch set.
type BatchStatistics struct {
	TotalBatches   int     `json:"total_batches"`
	TotalValue     float64 `json:"total_value"`
	PlanningCount  int     `json:"planning_count"`
	PreparedCount  int     `json:"prepared_count"`
	InProgress     int     `json:"in_progress_count"`
	CompletedCount int     `json:"completed_count"`
}

func (f BatchFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.CampaignID > 0 {
		conds = append(conds, "campaign_id = ?")
		args = append(args, f.CampaignID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.DateFrom != "" {
		conds = append(conds, "date(planned_distribution_date) >= date(?)")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		conds = append(conds, "date(planned_distribution_date) <= date(?)")
		args = append(args, f.DateTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListBatches returns one page of batches plus pagination and
// statistics. The three read-only queries are independent and issued
// concurrently.
func (db *DB) ListBatches(ctx context.Context, f BatchFilter) ([]models.DistributionBatch, *Pagination, *BatchStatistics, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	sortCol, ok := batchSortColumns[f.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		order = "ASC"
	}

	where, args := f.where()

	var (
		wg      sync.WaitGroup
		batches []models.DistributionBatch
		total   int
		stats   BatchStatistics
		errs    [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		q := batchQuery + where +
			fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", sortCol, order)
		pageArgs := append(append([]interface{}{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
		rows, err := db.conn.QueryContext(ctx, q, pageArgs...)
		if err != nil {
			errs[0] = fmt.Errorf("list batches: %w", err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var b models.DistributionBatch
			if err := rows.Scan(&b.ID, &b.CampaignID, &b.ProductID, &b.BatchName,
				&b.Description, &b.PlannedDate, &b.Status, &b.TotalItems,
				&b.TotalValue, &b.ProgressPercentage, &b.CreatedAt); err != nil {
				errs[0] = fmt.Errorf("scan batch: %w", err)
				return
			}
			batches = append(batches, b)
		}
		errs[0] = rows.Err()
	}()
	go func() {
		defer wg.Done()
		errs[1] = db.conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM distribution_batches"+where, args...).Scan(&total)
	}()
	go func() {
		defer wg.Done()
		errs[2] = db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(total_value), 0),
			        COALESCE(SUM(status = 'planning'), 0),
			        COALESCE(SUM(status = 'prepared'), 0),
			        COALESCE(SUM(status = 'in_progress'), 0),
			        COALESCE(SUM(status = 'completed'), 0)
			 FROM distribution_batches`+where, args...).
			Scan(&stats.TotalBatches, &stats.TotalValue, &stats.PlanningCount,
				&stats.PreparedCount, &stats.InProgress, &stats.CompletedCount)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, nil, err
		}
	}

	pagination := &Pagination{
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalCount: total,
		TotalPages: (total + f.PageSize - 1) / f.PageSize,
	}
	return batches, pagination, &stats, nil
}

// BatchItemsSummary counts the items of one batch per status.
type BatchItemsSummary struct {
	TotalItems       int `json:"total_items"`
	AllocatedCount   int `json:"allocated_count"`
	PreparedCount    int `json:"prepared_count"`
	DistributedCount int `json:"distributed_count"`
}

// GetBatchItems returns a batch with its items joined against the
// donor and product for the detail view.
func (db *DB) GetBatchItems(ctx context.Context, batchID int64) (*models.DistributionBatch, []models.BatchItem, *BatchItemsSummary, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	batch, err := scanBatch(db.conn.QueryRowContext(ctx, batchQuery+` WHERE id = ?`, batchID))
	if err == ErrNotFound {
		return nil, nil, nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load batch: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT bi.id, bi.batch_id, bi.donation_item_id, bi.quantity, bi.status,
		        bi.created_at, p.name, d.donor_name, di.total_price
		 FROM batch_items bi
		 JOIN donation_items di ON bi.donation_item_id = di.id
		 JOIN donations d ON di.donation_id = d.id
		 JOIN campaign_products p ON di.product_id = p.id
		 WHERE bi.batch_id = ?
		 ORDER BY bi.id ASC`, batchID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	summary := &BatchItemsSummary{}
	var items []models.BatchItem
	for rows.Next() {
		var it models.BatchItem
		if err := rows.Scan(&it.ID, &it.BatchID, &it.DonationItemID, &it.Quantity,
			&it.Status, &it.CreatedAt, &it.ProductName, &it.DonorName, &it.TotalPrice); err != nil {
			return nil, nil, nil, fmt.Errorf("scan batch item: %w", err)
		}
		summary.TotalItems++
		switch it.Status {
		case models.BatchItemAllocated:
			summary.AllocatedCount++
		case models.BatchItemPrepared:
			summary.PreparedCount++
		case models.BatchItemDistributed:
			summary.DistributedCount++
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate batch items: %w", err)
	}
	return batch, items, summary, nil
}
