package core

import (
	"net/url"
	"strings"

	"fpshield/models"
)

// HostnameFromURL extracts a lowercased hostname from rawURL. Bare
// hostnames (no scheme, no path) are accepted as-is since some callers
// send those instead of full URLs. Returns "" when no hostname can be
// determined.
func HostnameFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" && u.Scheme == "" && !strings.ContainsAny(rawURL, "/ ") {
		host = rawURL
	}
	return strings.ToLower(host)
}

// ShouldActivate decides whether the protection identified by featureID is
// active for rawURL under cfg. The checks short-circuit in precedence
// order: global switch, feature switch, URL validity, global allowlist,
// feature allowlist. Allowlist membership always means "protection off" --
// including for WebRTC, where the list names sites permitted to use real
// WebRTC.
func ShouldActivate(cfg *models.Config, rawURL, featureID string) bool {
	if !cfg.Enabled {
		return false
	}
	fc := cfg.Feature(featureID)
	if fc == nil || !fc.Enabled {
		return false
	}
	hostname := HostnameFromURL(rawURL)
	if hostname == "" {
		return false
	}
	if IsAllowlisted(hostname, cfg.GlobalAllowlist) {
		return false
	}
	if IsAllowlisted(hostname, fc.Allowlist) {
		return false
	}
	return true
}

// ActiveFeatures returns every feature active for rawURL, for UI display.
func ActiveFeatures(cfg *models.Config, rawURL string) []string {
	var active []string
	for _, id := range models.FeatureIDs() {
		if ShouldActivate(cfg, rawURL, id) {
			active = append(active, id)
		}
	}
	return active
}
