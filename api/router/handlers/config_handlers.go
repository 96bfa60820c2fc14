package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fpshield/core"
	"fpshield/logger"
	"fpshield/models"
)

// GetConfigHandler returns the current configuration snapshot.
func GetConfigHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.ConfigResponse{Config: st.Config()})
	}
}

// UpdateConfigHandler replaces the configuration, reapplies dependent
// subsystems and broadcasts the new copy to connected page contexts.
func UpdateConfigHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Config models.Config `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("UpdateConfigHandler: Error decoding request body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return
		}
		defer r.Body.Close()

		if err := st.UpdateConfig(req.Config); err != nil {
			logger.Error("UpdateConfigHandler: Error saving config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save configuration")
			return
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "Configuration saved."})
	}
}

// ResetConfigHandler restores the shipped defaults.
func ResetConfigHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := st.ResetConfig(); err != nil {
			logger.Error("ResetConfigHandler: Error resetting config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to reset configuration")
			return
		}
		writeJSON(w, http.StatusOK, models.SuccessResponse{Success: true, Message: "Configuration reset to defaults."})
	}
}

// ConfigEventsHandler streams push events (config-pushed, reload) to a page
// context over server-sent events. The connection stays open until the
// client goes away.
func ConfigEventsHandler(st *core.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "Streaming unsupported")
			return
		}

		id, events := st.Hub.Subscribe()
		defer st.Hub.Unsubscribe(id)
		logger.Debug("ConfigEventsHandler: context %s subscribed", id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// Prime the subscriber with the current snapshot so it does not
		// have to wait for the next save.
		snapshot := st.Config()
		initial := models.PushEvent{Type: "config-pushed", Config: &snapshot}
		if err := writeSSEEvent(w, initial); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				logger.Debug("ConfigEventsHandler: context %s disconnected", id)
				return
			case ev, open := <-events:
				if !open {
					return
				}
				if err := writeSSEEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev models.PushEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
