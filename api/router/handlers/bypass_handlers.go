package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"fpshield/core"
	"fpshield/logger"
	"fpshield/models"
)

// ChallengeDetectedHandler records a challenge detection and grants a
// time-limited User-Agent bypass for the hostname. Repeated detections
// inside the TTL are acknowledged as ignored so multiple frames observing
// the same challenge cannot cause a reload storm.
func ChallengeDetectedHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Hostname string `json:"hostname"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("ChallengeDetectedHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		ignored, err := st.Bypass.Detect(req.Hostname)
		if err != nil {
			if errors.Is(err, core.ErrMissingHostname) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("ChallengeDetectedHandler: detection failed for %q: %v", req.Hostname, err)
			writeError(w, http.StatusInternalServerError, "Failed to record challenge detection")
			return
		}
		writeJSON(w, http.StatusOK, models.DetectResponse{Success: true, Ignored: ignored})
	}
}

// CheckBypassStatusHandler answers whether User-Agent spoofing must be
// skipped for a hostname: either an unexpired bypass (possibly granted for
// an ancestor domain) covers it, or it is challenge infrastructure.
func CheckBypassStatusHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostname := core.HostnameFromURL(r.URL.Query().Get("hostname"))
		if hostname == "" {
			writeError(w, http.StatusBadRequest, "hostname query parameter is required")
			return
		}

		if core.IsChallengeInfraHost(hostname) {
			writeJSON(w, http.StatusOK, models.BypassStatusResponse{Skip: true, MatchedDomain: core.ChallengeInfraDomain})
			return
		}

		status := st.Bypass.Query(hostname)
		if !status.Active {
			writeJSON(w, http.StatusOK, models.BypassStatusResponse{Skip: false})
			return
		}
		writeJSON(w, http.StatusOK, models.BypassStatusResponse{
			Skip:             true,
			MatchedDomain:    status.MatchedDomain,
			RemainingSeconds: int(status.Remaining.Seconds()),
		})
	}
}
