package handlers

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports liveness for the BetweenUs backend. It deliberately
// avoids touching the record store so orchestrators can probe it cheaply.
type HealthHandler struct{}

// Handle implements GET /healthz.
func (HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{
		"status":  "ok",
		"service": "betweenus-backend",
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
