package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"ngo-donations-app/internal/db"
	"ngo-donations-app/internal/models"
	"ngo-donations-app/internal/services"
)

type createBatchRequest struct {
	CampaignID  int64  `json:"campaign_id"`
	BatchName   string `json:"batch_name"`
	PlannedDate string `json:"planned_distribution_date"`
	ProductID   int64  `json:"product_id"`
	Description string `json:"description"`
}

// CreateBatch allocates all eligible pending donation items into a new
// distribution batch.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CampaignID == 0 || req.ProductID == 0 || req.BatchName == "" || req.PlannedDate == "" {
		respondError(w, http.StatusBadRequest, "campaign_id, batch_name, planned_distribution_date and product_id are required")
		return
	}
	if _, err := time.Parse("2006-01-02", req.PlannedDate); err != nil {
		respondError(w, http.StatusBadRequest, "planned_distribution_date must be YYYY-MM-DD")
		return
	}

	batch, summary, err := h.DB.CreateBatch(r.Context(), db.CreateBatchParams{
		CampaignID:  req.CampaignID,
		ProductID:   req.ProductID,
		BatchName:   req.BatchName,
		PlannedDate: req.PlannedDate,
		Description: req.Description,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":            true,
		"batch":              batch,
		"assignment_summary": summary,
	})
}

// ListBatches returns a filtered page of batches with statistics.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	campaignID, _ := strconv.ParseInt(q.Get("campaign_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	batches, pagination, stats, err := h.DB.ListBatches(r.Context(), db.BatchFilter{
		CampaignID: campaignID,
		Status:     q.Get("status"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batches":    batches,
		"pagination": pagination,
		"statistics": stats,
	})
}

// BatchItems returns one batch with its items and a per-status summary.
func (h *Handler) BatchItems(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	batch, items, summary, err := h.DB.GetBatchItems(r.Context(), batchID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batch":   batch,
		"items":   items,
		"summary": summary,
	})
}

type updateProgressRequest struct {
	BatchID        int64  `json:"batch_id"`
	DonationItemID int64  `json:"donation_item_id"`
	Status         string `json:"status"`
}

// UpdateProgress advances one batch item through its lifecycle and
// returns the recomputed batch snapshot.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req updateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BatchID == 0 || req.DonationItemID == 0 {
		respondError(w, http.StatusBadRequest, "batch_id and donation_item_id are required")
		return
	}
	if !models.ValidBatchItemStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "status must be allocated, prepared or distributed")
		return
	}

	item, progress, err := h.DB.UpdateBatchProgress(r.Context(), req.BatchID, req.DonationItemID, req.Status)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if progress.Status == models.BatchCompleted {
		services.NotifyBatchCompleted("#"+strconv.FormatInt(req.BatchID, 10), progress.TotalItems)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"updated_item":   item,
		"batch_progress": progress,
	})
}
