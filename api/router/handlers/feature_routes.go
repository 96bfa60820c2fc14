package handlers

import (
	"github.com/go-chi/chi/v5"

	"fpshield/core"
)

func RegisterFeatureRoutes(r chi.Router, st *core.State) {
	r.Post("/features/fingerprint-detected", FingerprintDetectedHandler(st))
	r.Get("/features/recent", RecentFingerprintEventsHandler(st))

	r.Route("/tabs/{tabID}", func(r chi.Router) {
		r.Get("/features", GetTriggeredFeaturesHandler(st))
		r.Post("/navigated", TabNavigatedHandler(st))
		r.Delete("/", TabClosedHandler(st))
	})
}
