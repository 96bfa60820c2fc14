package models

// ErrorResponse is the JSON body returned for failed API calls.
type ErrorResponse struct {
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ConfigResponse struct {
	Config Config `json:"config"`
}

type AllowlistResponse struct {
	Success   bool   `json:"success"`
	Allowlist string `json:"allowlist"`
}

// DetectResponse answers a challenge-detected report. Ignored is set when
// an unexpired bypass already covered the hostname, so the caller must not
// reload again.
type DetectResponse struct {
	Success bool `json:"success"`
	Ignored bool `json:"ignored,omitempty"`
}

// BypassStatusResponse answers check-bypass-status. Skip true means the
// User-Agent protection must stay off for the hostname for the remaining
// seconds.
type BypassStatusResponse struct {
	Skip             bool   `json:"skip"`
	MatchedDomain    string `json:"matchedDomain,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

type TriggeredFeaturesResponse struct {
	Features []string `json:"features"`
}

// FingerprintEventRequest is the fire-and-forget signal a noise generator
// emits when it actually fired on a page.
type FingerprintEventRequest struct {
	TabID     int64  `json:"tabId"`
	Feature   string `json:"feature"`
	Hostname  string `json:"hostname"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// PushEvent is the one-way orchestrator-to-page broadcast. Type is
// "config-pushed" after a save, or "reload" when a challenge bypass wants
// the page reloaded once the bypass flag is durably set.
type PushEvent struct {
	Type     string  `json:"type"`
	Hostname string  `json:"hostname,omitempty"`
	Config   *Config `json:"config,omitempty"`
}
