package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"ngo-donations-app/internal/db"
	"ngo-donations-app/internal/models"
	"ngo-donations-app/internal/services"
)

type donationItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type createDonationRequest struct {
	CampaignID   int64                 `json:"campaign_id"`
	DonorName    string                `json:"donor_name"`
	DonorEmail   string                `json:"donor_email"`
	DonorPhone   string                `json:"donor_phone"`
	DonationDate string                `json:"donation_date"`
	Items        []donationItemRequest `json:"items"`
}

func (h *Handler) createDonation(w http.ResponseWriter, r *http.Request, source string) {
	var req createDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CampaignID == 0 || req.DonorName == "" || len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "campaign_id, donor_name and items are required")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == 0 || item.Quantity < 1 {
			respondError(w, http.StatusBadRequest, "every item needs a product_id and a positive quantity")
			return
		}
	}
	if req.DonationDate != "" {
		if _, err := time.Parse("2006-01-02", req.DonationDate); err != nil {
			respondError(w, http.StatusBadRequest, "donation_date must be YYYY-MM-DD")
			return
		}
	}

	params := db.CreateDonationParams{
		CampaignID:   req.CampaignID,
		DonorName:    req.DonorName,
		DonorEmail:   req.DonorEmail,
		DonorPhone:   req.DonorPhone,
		DonationDate: req.DonationDate,
		Source:       source,
	}
	for _, item := range req.Items {
		params.Items = append(params.Items, db.DonationItemParams{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	donation, request, err := h.DB.CreateDonation(r.Context(), params)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	services.NotifyDonation(donation.ReceiptNumber, donation.DonorName, donation.Amount,
		strconv.FormatInt(donation.CampaignID, 10))

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":         true,
		"donation":        donation,
		"payment_request": request,
	})
}

// CreateDonation records an online donation and opens a payment request.
func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	h.createDonation(w, r, "online")
}

// CreateManualDonation is the back-office entry path: the donation is
// recorded as already paid.
func (h *Handler) CreateManualDonation(w http.ResponseWriter, r *http.Request) {
	h.createDonation(w, r, "manual")
}

// ListDonations returns a campaign's donations.
func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	campaignID, err := strconv.ParseInt(r.URL.Query().Get("campaign_id"), 10, 64)
	if err != nil || campaignID < 1 {
		respondError(w, http.StatusBadRequest, "campaign_id is required")
		return
	}

	donations, err := h.DB.ListDonations(r.Context(), campaignID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"donations": donations})
}

// Webhook receives Razorpay events. The raw body is verified against
// the shared secret before anything is parsed; a bad or missing
// signature drops the event. Retries are the gateway's job.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	secret := os.Getenv("RAZORPAY_WEBHOOK_SECRET")
	signature := r.Header.Get("X-Razorpay-Signature")
	if !services.VerifyWebhookSignature(body, signature, secret) {
		respondError(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	ev, err := services.ParseWebhookEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, handled := paymentEventFor(ev)
	if !handled {
		// Unknown event types are acknowledged so the gateway stops
		// redelivering them.
		respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
		return
	}

	if _, err := h.DB.ApplyPaymentEvent(r.Context(), event); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// paymentEventFor translates a gateway envelope into the store's
// reconciliation input. The fragments mirror what the source gateway
// sends per event type.
func paymentEventFor(ev *services.WebhookEvent) (db.PaymentEvent, bool) {
	switch ev.Event {
	case services.EventPaymentCaptured:
		p := ev.Payload.Payment.Entity
		return db.PaymentEvent{
			EventType: ev.Event,
			OrderID:   ev.OrderID(),
			PaymentID: p.ID,
			Status:    models.PaymentPaid,
			Fragment: map[string]interface{}{
				"amount":      float64(p.Amount) / 100,
				"method":      p.Method,
				"email":       p.Email,
				"contact":     p.Contact,
				"captured_at": p.CreatedAt,
				"source":      "webhook",
			},
		}, true
	case services.EventPaymentFailed:
		p := ev.Payload.Payment.Entity
		return db.PaymentEvent{
			EventType: ev.Event,
			OrderID:   ev.OrderID(),
			PaymentID: p.ID,
			Status:    models.PaymentFailed,
			Fragment: map[string]interface{}{
				"error_code":        p.ErrorCode,
				"error_description": p.ErrorDescription,
				"failed_at":         p.CreatedAt,
			},
		}, true
	case services.EventOrderPaid:
		return db.PaymentEvent{
			EventType: ev.Event,
			OrderID:   ev.OrderID(),
			Status:    models.PaymentPaid,
			Fragment: map[string]interface{}{
				"order_paid_at":     ev.CreatedAt,
				"webhook_processed": true,
			},
		}, true
	}
	return db.PaymentEvent{}, false
}

type overrideRequest struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	PaymentID string `json:"paymentId"`
}

// WebhookOverride forces a payment request's status from the
// back-office, keyed by gateway order id.
func (h *Handler) WebhookOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OrderID == "" || req.Status == "" {
		respondError(w, http.StatusBadRequest, "orderId and status are required")
		return
	}

	request, err := h.DB.OverridePaymentStatus(r.Context(), req.OrderID, req.Status, req.PaymentID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"payment_request": request,
	})
}
