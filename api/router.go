package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fpshield/api/router/handlers"
	"fpshield/core"
	"fpshield/logger"
)

// NewRouter creates and configures the API router. All registered paths
// are relative to the /api base path.
func NewRouter(st *core.State) http.Handler {
	r := chi.NewRouter()

	handlers.RegisterHealthRoutes(r)
	handlers.RegisterVersionRoutes(r)
	handlers.RegisterConfigRoutes(r, st)
	handlers.RegisterAllowlistRoutes(r, st)
	handlers.RegisterBypassRoutes(r, st)
	handlers.RegisterFeatureRoutes(r, st)
	handlers.RegisterProxyRoutes(r, st)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		logger.Error("API SUB-ROUTER CATCH-ALL: Unhandled route relative to /api: %s %s", req.Method, req.URL.Path)
		http.NotFound(w, req)
	})

	return r
}
