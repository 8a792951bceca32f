package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/correlation", h.HandleGetCorrelation)
		r.Post("/correlation", h.HandlePostCorrelation)
		r.Post("/sentiment", h.HandleSentiment)
		r.Get("/allocation", h.HandleAllocation)
	})
}
