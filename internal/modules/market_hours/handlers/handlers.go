// Package handlers provides HTTP handlers for the market calendar gate.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/market_hours"
)

// statusGate is the read side of market_hours.Gate
type statusGate interface {
	Status(ctx context.Context, symbolOrRegion, exchangeHint string) market_hours.MarketStatus
	Regions(ctx context.Context) []market_hours.MarketStatus
}

// Handler handles market hours HTTP requests
type Handler struct {
	gate statusGate
	log  zerolog.Logger
}

// NewHandler creates a new market hours handler
func NewHandler(gate statusGate, log zerolog.Logger) *Handler {
	return &Handler{
		gate: gate,
		log:  log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetRegions handles GET /api/market-hours/regions
func (h *Handler) HandleGetRegions(w http.ResponseWriter, r *http.Request) {
	regions := h.gate.Regions(r.Context())

	openCount := 0
	for _, s := range regions {
		if s.IsOpen {
			openCount++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"regions":    regions,
			"open_count": openCount,
			"any_open":   openCount > 0,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetStatus handles GET /api/market-hours/status/{symbol}?exchange=
// symbol may also be a region name (US, EU, OTHER).
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request, symbol string) {
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	exchange := r.URL.Query().Get("exchange")

	status := h.gate.Status(r.Context(), symbol, exchange)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":   symbol,
			"exchange": exchange,
			"status":   status,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
