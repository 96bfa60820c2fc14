package handlers

import (
	"github.com/go-chi/chi/v5"

	"fpshield/core"
)

func RegisterConfigRoutes(r chi.Router, st *core.State) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", GetConfigHandler(st))
		r.Put("/", UpdateConfigHandler(st))
		r.Post("/", UpdateConfigHandler(st))
		r.Post("/reset", ResetConfigHandler(st))
		r.Get("/events", ConfigEventsHandler(st))
	})
}
