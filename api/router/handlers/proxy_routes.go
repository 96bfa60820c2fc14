package handlers

import (
	"github.com/go-chi/chi/v5"

	"fpshield/core"
)

func RegisterProxyRoutes(r chi.Router, st *core.State) {
	r.Route("/proxy", func(r chi.Router) {
		r.Get("/status", GetEgressStatusHandler(st))
		r.Post("/profiles", AddProxyProfileHandler(st))
		r.Post("/profiles/remove", RemoveProxyProfileHandler(st))
		r.Post("/routes", SetProxyRouteHandler(st))
		r.Post("/routes/remove", RemoveProxyRouteHandler(st))
	})
}
