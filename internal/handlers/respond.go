package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"ngo-donations-app/internal/db"
)

// Handler holds the injected store. One instance serves all routes.
type Handler struct {
	DB *db.DB
}

func New(store *db.DB) *Handler {
	return &Handler{DB: store}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps the store's error taxonomy onto HTTP status
// codes. Anything unrecognized is a 500 with the error detail.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Store error: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
