package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fpshield/version"
)

func RegisterVersionRoutes(r chi.Router) {
	r.Get("/version", getVersionHandler)
}

func getVersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.AppVersion})
}
