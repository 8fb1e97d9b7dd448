package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"ngo-donations-app/internal/db"
)

type productRequest struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	StockCount int     `json:"stock_count"`
}

type campaignRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	GoalAmount  float64          `json:"goal_amount"`
	Status      string           `json:"status"`
	Products    []productRequest `json:"products"`
}

// CreateCampaign opens a new fundraising campaign with its products.
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.GoalAmount <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive goal_amount are required")
		return
	}
	for _, p := range req.Products {
		if p.Name == "" || p.Price <= 0 {
			respondError(w, http.StatusBadRequest, "every product needs a name and a positive price")
			return
		}
	}

	params := db.CreateCampaignParams{
		Name:        req.Name,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
	}
	for _, p := range req.Products {
		params.Products = append(params.Products, db.ProductParams{
			Name:       p.Name,
			Price:      p.Price,
			StockCount: p.StockCount,
		})
	}

	campaign, err := h.DB.CreateCampaign(r.Context(), params)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"campaign": campaign,
	})
}

// UpdateCampaign changes a campaign's descriptive fields and goal.
func (h *Handler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.GoalAmount <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive goal_amount are required")
		return
	}
	status := req.Status
	if status == "" {
		status = "active"
	}

	campaign, err := h.DB.UpdateCampaign(r.Context(), id, req.Name, req.Description, req.GoalAmount, status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"campaign": campaign,
	})
}

// ListCampaigns returns all campaigns with their running totals.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.DB.ListCampaigns(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

// GetCampaign returns one campaign with its products.
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, products, err := h.DB.GetCampaign(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": campaign,
		"products": products,
	})
}
