package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"ngo-donations-app/internal/db"
	"ngo-donations-app/internal/handlers"
	adminauth "ngo-donations-app/internal/middleware"
	"ngo-donations-app/internal/services"
)

func main() {
	// 0. Load Config (Envars)
	_ = godotenv.Load() // Load .env file if exists

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		log.Println("Warning: TELEGRAM_TOKEN not set. Admin notifications disabled.")
	}

	if os.Getenv("RAZORPAY_WEBHOOK_SECRET") == "" {
		log.Println("Warning: RAZORPAY_WEBHOOK_SECRET not set. All webhooks will be rejected.")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// 1. Init Database (Turso, or a local sqlite file)
	dataSource := os.Getenv("TURSO_DATABASE_URL")
	authToken := os.Getenv("TURSO_AUTH_TOKEN")
	if dataSource == "" {
		dataSource = os.Getenv("SQLITE_PATH")
	}
	if dataSource == "" {
		log.Fatal("TURSO_DATABASE_URL or SQLITE_PATH must be set")
	}

	store, err := db.New(dataSource, authToken)
	if err != nil {
		log.Fatal("Failed to init DB:", err)
	}
	defer store.Close()
	store.StrictTransitions = os.Getenv("STRICT_STATUS_TRANSITIONS") == "true"
	log.Println("Database initialized")

	// 2. Init Telegram Bot
	if token != "" {
		if err := services.InitBot(token); err != nil {
			log.Printf("Warning: Failed to init Telegram bot: %v", err)
		}
	}

	// 3. Setup Router
	h := handlers.New(store)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// 4. Public Routes
	r.Get("/campaigns", h.ListCampaigns)
	r.Get("/campaigns/{id}", h.GetCampaign)
	r.Post("/donations", h.CreateDonation)
	r.Post("/donations/webhook", h.Webhook)
	r.Patch("/donations/webhook", h.WebhookOverride)

	// 5. Admin Routes (BasicAuth or Telegram initData)
	r.Group(func(r chi.Router) {
		r.Use(adminauth.AdminAuth)
		r.Post("/campaigns", h.CreateCampaign)
		r.Put("/campaigns/{id}", h.UpdateCampaign)
		r.Post("/donations/manual", h.CreateManualDonation)
		r.Get("/donations", h.ListDonations)
		r.Post("/batches", h.CreateBatch)
		r.Get("/batches", h.ListBatches)
		r.Get("/batches/{id}/items", h.BatchItems)
		r.Put("/batches/update-progress", h.UpdateProgress)
	})

	// 6. Start
	fmt.Printf("Server running on http://localhost:%s\n", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal(err)
	}
}
