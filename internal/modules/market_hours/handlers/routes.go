package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market hours routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market-hours", func(r chi.Router) {
		r.Get("/regions", h.HandleGetRegions)
		r.Get("/status/{symbol}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetStatus(w, r, chi.URLParam(r, "symbol"))
		})
	})
}
