package db

import (
	"context"
	"database/sql"
	"fmt"

	"ngo-donations-app/internal/models"
)

// CreateCampaignParams carries a new campaign and its products.
type CreateCampaignParams struct {
	Name        string
	Description string
	GoalAmount  float64
	Products    []ProductParams
}

// ProductParams is one sponsorable product under a campaign.
type ProductParams struct {
	Name       string
	Price      float64
	StockCount int
}

// CreateCampaign inserts the campaign and its products in one
// transaction so a product failure never leaves a bare campaign.
func (db *DB) CreateCampaign(ctx context.Context, p CreateCampaignParams) (*models.Campaign, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin campaign create: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO campaigns (name, description, goal_amount) VALUES (?, ?, ?)`,
		p.Name, p.Description, p.GoalAmount)
	if err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	campaignID, _ := res.LastInsertId()

	if len(p.Products) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO campaign_products (campaign_id, name, price, stock_count)
			 VALUES (?, ?, ?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("prepare products: %w", err)
		}
		for _, prod := range p.Products {
			if _, err := stmt.ExecContext(ctx, campaignID, prod.Name, prod.Price, prod.StockCount); err != nil {
				stmt.Close()
				return nil, fmt.Errorf("insert product %q: %w", prod.Name, err)
			}
		}
		stmt.Close()
	}

	campaign, err := scanCampaign(tx.QueryRowContext(ctx, campaignQuery+` WHERE id = ?`, campaignID))
	if err != nil {
		return nil, fmt.Errorf("reload campaign: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit campaign create: %w", err)
	}
	return campaign, nil
}

// UpdateCampaign changes the descriptive fields and goal. Running
// totals are never written here; they only move with donations.
func (db *DB) UpdateCampaign(ctx context.Context, id int64, name, description string, goalAmount float64, status string) (*models.Campaign, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin campaign update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET name = ?, description = ?, goal_amount = ?, status = ?
		 WHERE id = ?`,
		name, description, goalAmount, status, id)
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}

	// Goal changes move the percentage, so rederive it from the totals.
	_, err = tx.ExecContext(ctx,
		`UPDATE campaigns SET progress_percentage =
		     CASE WHEN goal_amount > 0
		          THEN MIN(100, CAST(ROUND(total_raised * 100.0 / goal_amount) AS INTEGER))
		          ELSE 0 END
		 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("recompute campaign progress: %w", err)
	}

	campaign, err := scanCampaign(tx.QueryRowContext(ctx, campaignQuery+` WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload campaign: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit campaign update: %w", err)
	}
	return campaign, nil
}

// GetCampaign loads one campaign with its products.
func (db *DB) GetCampaign(ctx context.Context, id int64) (*models.Campaign, []models.CampaignProduct, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	campaign, err := scanCampaign(db.conn.QueryRowContext(ctx, campaignQuery+` WHERE id = ?`, id))
	if err == ErrNotFound {
		return nil, nil, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load campaign: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, campaign_id, name, price, stock_count
		 FROM campaign_products WHERE campaign_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.CampaignProduct
	for rows.Next() {
		var p models.CampaignProduct
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.Name, &p.Price, &p.StockCount); err != nil {
			return nil, nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return campaign, products, rows.Err()
}

// ListCampaigns returns all campaigns, active first, newest first.
func (db *DB) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		campaignQuery+` ORDER BY status = 'active' DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.GoalAmount,
			&c.TotalRaised, &c.DonorCount, &c.ProgressPercentage, &c.Status,
			&c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

const campaignQuery = `
	SELECT id, name, description, goal_amount, total_raised, donor_count,
	       progress_percentage, status, created_at
	FROM campaigns`

func scanCampaign(row *sql.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.GoalAmount, &c.TotalRaised,
		&c.DonorCount, &c.ProgressPercentage, &c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
