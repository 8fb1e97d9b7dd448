package db

import (
	"context"
	"path/filepath"
	"testing"

	"ngo-donations-app/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"), "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedCampaign creates a campaign with one product and returns both ids.
func seedCampaign(t *testing.T, store *DB, goal, price float64) (int64, int64) {
	t.Helper()
	campaign, err := store.CreateCampaign(context.Background(), CreateCampaignParams{
		Name:       "Winter Relief",
		GoalAmount: goal,
		Products:   []ProductParams{{Name: "Blanket Kit", Price: price, StockCount: 500}},
	})
	if err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	_, products, err := store.GetCampaign(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("failed to load products: %v", err)
	}
	return campaign.ID, products[0].ID
}

// seedDonation creates a donation of quantity qty on the given date and
// returns its single donation item.
func seedDonation(t *testing.T, store *DB, campaignID, productID int64, qty int, date string) models.DonationItem {
	t.Helper()
	donation, _, err := store.CreateDonation(context.Background(), CreateDonationParams{
		CampaignID:   campaignID,
		DonorName:    "Donor " + date,
		DonationDate: date,
		Items:        []DonationItemParams{{ProductID: productID, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("failed to seed donation: %v", err)
	}
	items, err := store.ListDonationItems(context.Background(), donation.ID)
	if err != nil {
		t.Fatalf("failed to list donation items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 donation item, got %d", len(items))
	}
	return items[0]
}
