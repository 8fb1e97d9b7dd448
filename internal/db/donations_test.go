package db

import (
	"context"
	"errors"
	"testing"

	"ngo-donations-app/internal/models"
)

func TestCreateDonationUpdatesCampaignLedger(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	campaignID, productID := seedCampaign(t, store, 1000, 100)

	donation, request, err := store.CreateDonation(ctx, CreateDonationParams{
		CampaignID: campaignID,
		DonorName:  "Asha",
		DonorEmail: "asha@example.org",
		Items:      []DonationItemParams{{ProductID: productID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	if donation.Amount != 300 {
		t.Errorf("expected amount 300, got %v", donation.Amount)
	}
	if donation.ReceiptNumber == "" {
		t.Errorf("expected a receipt number")
	}
	if request.Status != models.PaymentCreated {
		t.Errorf("expected payment request created, got %s", request.Status)
	}
	if request.GatewayOrderID == "" {
		t.Errorf("expected a gateway order id")
	}

	campaign, _, err := store.GetCampaign(ctx, campaignID)
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if campaign.TotalRaised != 300 {
		t.Errorf("expected total_raised 300, got %v", campaign.TotalRaised)
	}
	if campaign.DonorCount != 1 {
		t.Errorf("expected donor_count 1, got %d", campaign.DonorCount)
	}
	if campaign.ProgressPercentage != 30 {
		t.Errorf("expected 30%% progress, got %d", campaign.ProgressPercentage)
	}

	items, err := store.ListDonationItems(ctx, donation.ID)
	if err != nil {
		t.Fatalf("ListDonationItems failed: %v", err)
	}
	if len(items) != 1 || items[0].FulfillmentStatus != models.FulfillmentPending {
		t.Errorf("expected one pending item, got %+v", items)
	}
}

func TestCreateDonationManualIsPaid(t *testing.T) {
	store := newTestDB(t)
	campaignID, productID := seedCampaign(t, store, 1000, 100)

	_, request, err := store.CreateDonation(context.Background(), CreateDonationParams{
		CampaignID: campaignID,
		DonorName:  "Walk-in Donor",
		Source:     "manual",
		Items:      []DonationItemParams{{ProductID: productID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}
	if request.Status != models.PaymentPaid {
		t.Errorf("expected manual entry paid, got %s", request.Status)
	}
}

func TestCreateDonationErrors(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	campaignID, _ := seedCampaign(t, store, 1000, 100)

	if _, _, err := store.CreateDonation(ctx, CreateDonationParams{
		CampaignID: 9999,
		DonorName:  "Nobody",
		Items:      []DonationItemParams{{ProductID: 1, Quantity: 1}},
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown campaign, got %v", err)
	}

	if _, _, err := store.CreateDonation(ctx, CreateDonationParams{
		CampaignID: campaignID,
		DonorName:  "Nobody",
		Items:      []DonationItemParams{{ProductID: 9999, Quantity: 1}},
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign product, got %v", err)
	}
}

func TestUpdateCampaign(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	campaignID, productID := seedCampaign(t, store, 1000, 100)

	if _, _, err := store.CreateDonation(ctx, CreateDonationParams{
		CampaignID: campaignID,
		DonorName:  "Asha",
		Items:      []DonationItemParams{{ProductID: productID, Quantity: 5}},
	}); err != nil {
		t.Fatalf("CreateDonation failed: %v", err)
	}

	// Halving the goal doubles the derived progress.
	campaign, err := store.UpdateCampaign(ctx, campaignID, "Winter Relief", "extended", 500, "active")
	if err != nil {
		t.Fatalf("UpdateCampaign failed: %v", err)
	}
	if campaign.ProgressPercentage != 100 {
		t.Errorf("expected 100%% after goal change, got %d", campaign.ProgressPercentage)
	}
	if campaign.TotalRaised != 500 {
		t.Errorf("expected totals untouched, got %v", campaign.TotalRaised)
	}

	if _, err := store.UpdateCampaign(ctx, 9999, "X", "", 100, "active"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
