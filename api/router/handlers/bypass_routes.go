package handlers

import (
	"github.com/go-chi/chi/v5"

	"fpshield/core"
)

func RegisterBypassRoutes(r chi.Router, st *core.State) {
	r.Post("/bypass/challenge-detected", ChallengeDetectedHandler(st))
	r.Get("/bypass/status", CheckBypassStatusHandler(st))
}
