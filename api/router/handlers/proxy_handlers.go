package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"fpshield/core"
	"fpshield/logger"
	"fpshield/models"
)

// AddProxyProfileHandler creates an upstream profile. A profile submitted
// without a name is auto-named from a reverse-geo lookup of its host; the
// lookup is best-effort and never blocks profile creation on failure.
func AddProxyProfileHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ProxyProfile
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("AddProxyProfileHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		if strings.TrimSpace(req.Host) == "" || req.Port <= 0 || req.Port > 65535 {
			writeError(w, http.StatusBadRequest, "A proxy host and a valid port are required")
			return
		}
		switch req.Scheme {
		case models.SchemeSOCKS5, models.SchemeSOCKS4, models.SchemeHTTP, models.SchemeHTTPS:
		default:
			writeError(w, http.StatusBadRequest, "Scheme must be one of socks5, socks4, http, https")
			return
		}

		if req.Location == nil {
			geo := st.Geo.Lookup(req.Host)
			req.Location = &geo
		}
		if strings.TrimSpace(req.Name) == "" {
			req.Name = req.Location.Label()
		}

		cfg := st.Config()
		stored := cfg.Proxy.AddProfile(req)
		if err := st.UpdateConfig(cfg); err != nil {
			logger.Error("AddProxyProfileHandler: Error saving config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save proxy profile")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "profile": stored})
	}
}

// RemoveProxyProfileHandler deletes a profile; routes referencing it and a
// matching active-profile reference are cleared as part of the same save.
func RemoveProxyProfileHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("RemoveProxyProfileHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		cfg := st.Config()
		if !cfg.Proxy.RemoveProfile(req.Name) {
			writeError(w, http.StatusNotFound, "No such proxy profile: "+req.Name)
			return
		}
		if err := st.UpdateConfig(cfg); err != nil {
			logger.Error("RemoveProxyProfileHandler: Error saving config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to remove proxy profile")
			return
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

// SetProxyRouteHandler binds a domain pattern to a profile, overwriting
// any existing binding for the pattern.
func SetProxyRouteHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.Route
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("SetProxyRouteHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		if strings.TrimSpace(req.Pattern) == "" {
			writeError(w, http.StatusBadRequest, "A domain pattern is required")
			return
		}

		cfg := st.Config()
		if cfg.Proxy.ProfileByName(req.Profile) == nil {
			writeError(w, http.StatusBadRequest, "Route references unknown profile: "+req.Profile)
			return
		}
		cfg.Proxy.SetRoute(req.Pattern, req.Profile)
		if err := st.UpdateConfig(cfg); err != nil {
			logger.Error("SetProxyRouteHandler: Error saving config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save route")
			return
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

// RemoveProxyRouteHandler drops the binding for a pattern.
func RemoveProxyRouteHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Pattern string `json:"pattern"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("RemoveProxyRouteHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		cfg := st.Config()
		if !cfg.Proxy.RemoveRoute(req.Pattern) {
			writeError(w, http.StatusNotFound, "No route for pattern: "+req.Pattern)
			return
		}
		if err := st.UpdateConfig(cfg); err != nil {
			logger.Error("RemoveProxyRouteHandler: Error saving config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to remove route")
			return
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

// GetEgressStatusHandler reports the current egress mode and whether the
// proxy is temporarily disabled because of an allowlisted destination.
func GetEgressStatusHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := st.Config()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"mode":                 core.ComputeEgressMode(&cfg).String(),
			"appliedMode":          st.Egress.Mode().String(),
			"disabledForAllowlist": st.Proxy.DisabledForAllowlist(),
		})
	}
}
