package handlers

import (
	"github.com/go-chi/chi/v5"

	"fpshield/core"
)

func RegisterAllowlistRoutes(r chi.Router, st *core.State) {
	r.Route("/allowlist", func(r chi.Router) {
		r.Post("/add", AddAllowlistDomainHandler(st))
		r.Post("/remove", RemoveAllowlistDomainHandler(st))
	})
}
