package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fpshield/core"
	"fpshield/database"
	"fpshield/logger"
	"fpshield/models"
)

// FingerprintDetectedHandler records a triggered-feature signal from a
// noise generator into the per-tab ledger and the event history.
func FingerprintDetectedHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.FingerprintEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("FingerprintDetectedHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		hostname := core.HostnameFromURL(req.Hostname)
		if hostname == "" {
			hostname = core.HostnameFromURL(req.URL)
		}
		if req.Feature == "" || hostname == "" {
			writeError(w, http.StatusBadRequest, "feature and hostname are required")
			return
		}

		st.Ledger.Record(req.TabID, hostname, req.Feature)

		if database.DB != nil {
			if err := database.InsertFingerprintEvent(req); err != nil {
				// History is best-effort; the ledger entry already landed.
				logger.Error("FingerprintDetectedHandler: failed to store event: %v", err)
			}
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

// GetTriggeredFeaturesHandler returns the protections that fired on the
// page currently loaded in a tab.
func GetTriggeredFeaturesHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := strconv.ParseInt(chi.URLParam(r, "tabID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tab ID")
			return
		}
		writeJSON(w, http.StatusOK, models.TriggeredFeaturesResponse{Features: st.Ledger.Features(tabID)})
	}
}

// TabNavigatedHandler resets a tab's ledger entry on cross-domain
// navigation and runs the proxy policy for the navigation intent.
func TabNavigatedHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := strconv.ParseInt(chi.URLParam(r, "tabID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tab ID")
			return
		}
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("TabNavigatedHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		cfg := st.Config()
		st.Ledger.Navigate(tabID, core.HostnameFromURL(req.URL))
		decision := st.Proxy.DecideNavigation(&cfg, tabID, req.URL)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"cancelAndReplay": decision.Action == core.NavCancelAndReplay,
			"egressMode":      decision.Mode.String(),
		})
	}
}

// TabClosedHandler drops all per-tab state.
func TabClosedHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tabID, err := strconv.ParseInt(chi.URLParam(r, "tabID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tab ID")
			return
		}
		st.DropTab(tabID)
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
	}
}

// RecentFingerprintEventsHandler lists the newest stored signals.
func RecentFingerprintEventsHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		events, err := database.RecentFingerprintEvents(limit)
		if err != nil {
			logger.Error("RecentFingerprintEventsHandler: query failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to load fingerprint events")
			return
		}
		if events == nil {
			events = []models.FingerprintEventRequest{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
	}
}
