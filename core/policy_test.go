package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fpshield/models"
)

func TestShouldActivatePrecedence(t *testing.T) {
	cfg := models.DefaultConfig()

	// Global kill switch beats everything.
	cfg.Enabled = false
	cfg.Canvas.Enabled = true
	assert.False(t, ShouldActivate(&cfg, "https://example.com/", models.FeatureCanvas))

	// Feature kill switch.
	cfg.Enabled = true
	cfg.Canvas.Enabled = false
	assert.False(t, ShouldActivate(&cfg, "https://example.com/", models.FeatureCanvas))

	// Global allowlist suppresses every feature regardless of its settings.
	cfg.Canvas.Enabled = true
	cfg.GlobalAllowlist = "*.example.com"
	assert.False(t, ShouldActivate(&cfg, "https://sub.example.com/", models.FeatureCanvas))
	assert.False(t, ShouldActivate(&cfg, "https://sub.example.com/", models.FeatureWebGL))
	assert.True(t, ShouldActivate(&cfg, "https://other.com/", models.FeatureCanvas))
}

func TestShouldActivateFeatureAllowlist(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.Enabled = true
	cfg.Canvas.Enabled = true
	cfg.Canvas.Allowlist = "*.example.com"

	assert.False(t, ShouldActivate(&cfg, "https://sub.example.com/", models.FeatureCanvas))
	assert.True(t, ShouldActivate(&cfg, "https://other.com/", models.FeatureCanvas))
	// The allowlist only applies to its own feature.
	assert.True(t, ShouldActivate(&cfg, "https://sub.example.com/", models.FeatureWebGL))
}

func TestShouldActivateInvalidURL(t *testing.T) {
	cfg := models.DefaultConfig()
	assert.False(t, ShouldActivate(&cfg, "", models.FeatureCanvas))
	assert.False(t, ShouldActivate(&cfg, "http://\x7f/", models.FeatureCanvas))
	assert.False(t, ShouldActivate(&cfg, "https:///path-only", models.FeatureCanvas))
}

func TestShouldActivateUnknownFeature(t *testing.T) {
	cfg := models.DefaultConfig()
	assert.False(t, ShouldActivate(&cfg, "https://example.com/", "telepathy"))
}

func TestShouldActivateWebRTCAllowlistMeansPermitted(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.WebRTC.Enabled = true
	cfg.WebRTC.Allowlist = "meet.example.com"
	// Allowlist membership always means "protection off".
	assert.False(t, ShouldActivate(&cfg, "https://meet.example.com/room", models.FeatureWebRTC))
	assert.True(t, ShouldActivate(&cfg, "https://tracker.net/", models.FeatureWebRTC))
}

func TestHostnameFromURL(t *testing.T) {
	assert.Equal(t, "example.com", HostnameFromURL("https://Example.com/path?q=1"))
	assert.Equal(t, "example.com", HostnameFromURL("https://example.com:8443/"))
	assert.Equal(t, "sub.example.com", HostnameFromURL("sub.example.com"))
	assert.Equal(t, "", HostnameFromURL(""))
	assert.Equal(t, "", HostnameFromURL("https:///nohost"))
}

func TestActiveFeatures(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.Enabled = true
	active := ActiveFeatures(&cfg, "https://example.com/")
	assert.Contains(t, active, models.FeatureCanvas)
	// Timezone ships disabled.
	assert.NotContains(t, active, models.FeatureTimezone)

	cfg.Enabled = false
	assert.Empty(t, ActiveFeatures(&cfg, "https://example.com/"))
}
