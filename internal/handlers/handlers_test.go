package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"ngo-donations-app/internal/db"
	"ngo-donations-app/internal/models"
)

// newTestEnv builds a real store on a temp file and a router with all
// routes mounted, no auth middleware.
func newTestEnv(t *testing.T) (*db.DB, *chi.Mux) {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "test.db"), "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := New(store)
	r := chi.NewRouter()
	r.Get("/campaigns", h.ListCampaigns)
	r.Get("/campaigns/{id}", h.GetCampaign)
	r.Post("/campaigns", h.CreateCampaign)
	r.Put("/campaigns/{id}", h.UpdateCampaign)
	r.Post("/donations", h.CreateDonation)
	r.Post("/donations/manual", h.CreateManualDonation)
	r.Get("/donations", h.ListDonations)
	r.Post("/donations/webhook", h.Webhook)
	r.Patch("/donations/webhook", h.WebhookOverride)
	r.Post("/batches", h.CreateBatch)
	r.Get("/batches", h.ListBatches)
	r.Get("/batches/{id}/items", h.BatchItems)
	r.Put("/batches/update-progress", h.UpdateProgress)
	return store, r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, w.Body.String())
	}
	return resp
}

// seed creates a campaign with one product and one pending donation,
// returning campaign and product ids.
func seed(t *testing.T, store *db.DB) (int64, int64) {
	t.Helper()
	campaign, err := store.CreateCampaign(context.Background(), db.CreateCampaignParams{
		Name:       "School Meals",
		GoalAmount: 5000,
		Products:   []db.ProductParams{{Name: "Meal Kit", Price: 150, StockCount: 100}},
	})
	if err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	_, products, err := store.GetCampaign(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("failed to load products: %v", err)
	}
	productID := products[0].ID
	if _, _, err := store.CreateDonation(context.Background(), db.CreateDonationParams{
		CampaignID:   campaign.ID,
		DonorName:    "Ravi",
		DonationDate: "2024-01-05",
		Items:        []db.DonationItemParams{{ProductID: productID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("failed to seed donation: %v", err)
	}
	return campaign.ID, productID
}

func TestCreateBatchHandler(t *testing.T) {
	store, r := newTestEnv(t)
	campaignID, productID := seed(t, store)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name: "success",
			body: map[string]interface{}{
				"campaign_id":               campaignID,
				"product_id":                productID,
				"batch_name":                "January Run",
				"planned_distribution_date": "2024-01-20",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "missing fields",
			body: map[string]interface{}{
				"campaign_id": campaignID,
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad date",
			body: map[string]interface{}{
				"campaign_id":               campaignID,
				"product_id":                productID,
				"batch_name":                "Bad Date Run",
				"planned_distribution_date": "20-01-2024",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown product",
			body: map[string]interface{}{
				"campaign_id":               campaignID,
				"product_id":                9999,
				"batch_name":                "Ghost Run",
				"planned_distribution_date": "2024-01-20",
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid JSON",
			body:       nil,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/batches", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			resp := decodeBody(t, w)
			if tt.wantStatus == http.StatusCreated {
				if resp["success"] != true {
					t.Errorf("expected success true, got %v", resp["success"])
				}
				summary := resp["assignment_summary"].(map[string]interface{})
				if summary["items_assigned"].(float64) != 1 {
					t.Errorf("expected 1 item assigned, got %v", summary["items_assigned"])
				}
				batch := resp["batch"].(map[string]interface{})
				if batch["total_value"].(float64) != 300 {
					t.Errorf("expected total_value 300, got %v", batch["total_value"])
				}
			} else if resp["error"] == nil {
				t.Errorf("expected error body, got %s", w.Body.String())
			}
		})
	}
}

func TestUpdateProgressHandler(t *testing.T) {
	store, r := newTestEnv(t)
	campaignID, productID := seed(t, store)

	batch, _, err := store.CreateBatch(context.Background(), db.CreateBatchParams{
		CampaignID:  campaignID,
		ProductID:   productID,
		BatchName:   "Run",
		PlannedDate: "2024-01-20",
	})
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	_, items, _, err := store.GetBatchItems(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("GetBatchItems failed: %v", err)
	}

	w := doJSON(t, r, http.MethodPut, "/batches/update-progress", map[string]interface{}{
		"batch_id":         batch.ID,
		"donation_item_id": items[0].DonationItemID,
		"status":           "distributed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	progress := resp["batch_progress"].(map[string]interface{})
	if progress["batch_status"] != models.BatchCompleted {
		t.Errorf("expected completed, got %v", progress["batch_status"])
	}
	if progress["progress_percentage"].(float64) != 100 {
		t.Errorf("expected 100%%, got %v", progress["progress_percentage"])
	}

	// Bad status value.
	w = doJSON(t, r, http.MethodPut, "/batches/update-progress", map[string]interface{}{
		"batch_id":         batch.ID,
		"donation_item_id": items[0].DonationItemID,
		"status":           "lost",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad status, got %d", w.Code)
	}

	// Unknown pair.
	w = doJSON(t, r, http.MethodPut, "/batches/update-progress", map[string]interface{}{
		"batch_id":         batch.ID,
		"donation_item_id": 9999,
		"status":           "prepared",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown item, got %d", w.Code)
	}
}

func TestBatchItemsHandler(t *testing.T) {
	store, r := newTestEnv(t)
	campaignID, productID := seed(t, store)

	batch, _, err := store.CreateBatch(context.Background(), db.CreateBatchParams{
		CampaignID:  campaignID,
		ProductID:   productID,
		BatchName:   "Run",
		PlannedDate: "2024-01-20",
	})
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/batches/"+strconv.FormatInt(batch.ID, 10)+"/items", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
	summary := resp["summary"].(map[string]interface{})
	if summary["allocated_count"].(float64) != 1 {
		t.Errorf("expected 1 allocated, got %v", summary["allocated_count"])
	}

	w = doJSON(t, r, http.MethodGet, "/batches/9999/items", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown batch, got %d", w.Code)
	}
}

func TestCreateDonationHandler(t *testing.T) {
	store, r := newTestEnv(t)
	campaignID, productID := seed(t, store)

	w := doJSON(t, r, http.MethodPost, "/donations", map[string]interface{}{
		"campaign_id": campaignID,
		"donor_name":  "Meera",
		"donor_email": "meera@example.org",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 1},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	request := resp["payment_request"].(map[string]interface{})
	if request["status"] != models.PaymentCreated {
		t.Errorf("expected payment request created, got %v", request["status"])
	}

	// Manual entry is immediately paid.
	w = doJSON(t, r, http.MethodPost, "/donations/manual", map[string]interface{}{
		"campaign_id": campaignID,
		"donor_name":  "Walk-in",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 1},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp = decodeBody(t, w)
	request = resp["payment_request"].(map[string]interface{})
	if request["status"] != models.PaymentPaid {
		t.Errorf("expected manual entry paid, got %v", request["status"])
	}

	// Missing items.
	w = doJSON(t, r, http.MethodPost, "/donations", map[string]interface{}{
		"campaign_id": campaignID,
		"donor_name":  "Empty",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing items, got %d", w.Code)
	}
}
