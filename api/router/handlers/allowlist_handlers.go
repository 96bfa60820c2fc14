package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fpshield/core"
	"fpshield/logger"
	"fpshield/models"
)

type allowlistRequest struct {
	Domain string `json:"domain"`
	// Feature is optional; empty targets the global allowlist.
	Feature string `json:"feature,omitempty"`
}

// AddAllowlistDomainHandler adds a domain to the global or a per-feature
// allowlist and persists the change.
func AddAllowlistDomainHandler(st *core.State) http.HandlerFunc {
	return allowlistMutationHandler(st, "AddAllowlistDomainHandler", core.AddAllowlistDomain)
}

// RemoveAllowlistDomainHandler removes a domain (bare and wildcard forms)
// from the global or a per-feature allowlist.
func RemoveAllowlistDomainHandler(st *core.State) http.HandlerFunc {
	return allowlistMutationHandler(st, "RemoveAllowlistDomainHandler", core.RemoveAllowlistDomain)
}

func allowlistMutationHandler(st *core.State, name string, mutate func(hostname, list string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req allowlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("%s: Error decoding request body: %v", name, err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		hostname := core.HostnameFromURL(req.Domain)
		if hostname == "" {
			logger.Error("%s: request carried no usable domain (%q)", name, req.Domain)
			writeError(w, http.StatusBadRequest, "A valid domain is required")
			return
		}

		cfg := st.Config()
		var updated string
		if req.Feature == "" {
			cfg.GlobalAllowlist = mutate(hostname, cfg.GlobalAllowlist)
			updated = cfg.GlobalAllowlist
		} else {
			fc := cfg.Feature(req.Feature)
			if fc == nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown feature %q", req.Feature))
				return
			}
			fc.Allowlist = mutate(hostname, fc.Allowlist)
			updated = fc.Allowlist
		}

		if err := st.UpdateConfig(cfg); err != nil {
			logger.Error("%s: Error saving config: %v", name, err)
			writeError(w, http.StatusInternalServerError, "Failed to save allowlist change")
			return
		}
		writeJSON(w, http.StatusOK, models.AllowlistResponse{Success: true, Allowlist: updated})
	}
}
