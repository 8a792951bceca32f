package handlers

import "github.com/go-chi/chi/v5"

// RegisterRoutes registers the holdings and session routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holdings", func(r chi.Router) {
		r.Get("/", h.HandleGetHoldings)
		r.Put("/", h.HandleReplaceHoldings)
		r.Patch("/{symbol}", h.HandleSetWeight)
	})

	r.Route("/session", func(r chi.Router) {
		r.Post("/optimize", h.HandleOptimize)
		r.Get("/status", h.HandleGetStatus)
		r.Get("/result", h.HandleGetResult)
		r.Post("/apply", h.HandleApply)
	})
}
