package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// SchemaVersion tags persisted configuration blobs. Bump it whenever the
// structure changes and add a corresponding step to configMigrations.
const SchemaVersion = 3

// Feature identifiers as used on the wire by page and UI contexts.
const (
	FeatureCanvas      = "canvas"
	FeatureWebGL       = "webgl"
	FeatureFont        = "font"
	FeatureClientRects = "clientRects"
	FeatureWebGPU      = "webgpu"
	FeatureAudio       = "audioContext"
	FeatureTimezone    = "timezone"
	FeatureUserAgent   = "userAgent"
	FeatureWebRTC      = "webRTC"
)

// FeatureIDs lists every toggleable protection, in display order.
func FeatureIDs() []string {
	return []string{
		FeatureCanvas, FeatureWebGL, FeatureFont, FeatureClientRects,
		FeatureWebGPU, FeatureAudio, FeatureTimezone, FeatureUserAgent,
		FeatureWebRTC,
	}
}

// FeatureConfig is the per-protection section of the configuration. The
// optional parameter fields only apply to some features; zero values mean
// "not applicable".
type FeatureConfig struct {
	Enabled   bool   `json:"enabled"`
	Allowlist string `json:"allowlist"`

	NoiseLevel     float64 `json:"noiseLevel,omitempty"`
	Preset         string  `json:"preset,omitempty"`
	TimezoneName   string  `json:"timezoneName,omitempty"`
	TimezoneOffset int     `json:"timezoneOffset,omitempty"`
	IPPolicy       string  `json:"ipPolicy,omitempty"`
}

type NotificationConfig struct {
	Enabled          bool `json:"enabled"`
	ShowFingerprints bool `json:"showFingerprints"`
}

// Config is the single versioned source of truth for all protections.
// Allowlists are stored as comma-joined pattern strings.
type Config struct {
	SchemaVersion   int    `json:"schemaVersion"`
	Enabled         bool   `json:"enabled"`
	GlobalAllowlist string `json:"globalAllowlist"`

	Canvas       FeatureConfig `json:"canvas"`
	WebGL        FeatureConfig `json:"webgl"`
	Font         FeatureConfig `json:"font"`
	ClientRects  FeatureConfig `json:"clientRects"`
	WebGPU       FeatureConfig `json:"webgpu"`
	AudioContext FeatureConfig `json:"audioContext"`
	Timezone     FeatureConfig `json:"timezone"`
	UserAgent    FeatureConfig `json:"userAgent"`
	WebRTC       FeatureConfig `json:"webRTC"`

	Proxy         ProxyConfig        `json:"proxy"`
	Notifications NotificationConfig `json:"notifications"`
}

// Feature returns the section for a feature identifier, or nil for an
// unknown identifier.
func (c *Config) Feature(id string) *FeatureConfig {
	switch id {
	case FeatureCanvas:
		return &c.Canvas
	case FeatureWebGL:
		return &c.WebGL
	case FeatureFont:
		return &c.Font
	case FeatureClientRects:
		return &c.ClientRects
	case FeatureWebGPU:
		return &c.WebGPU
	case FeatureAudio:
		return &c.AudioContext
	case FeatureTimezone:
		return &c.Timezone
	case FeatureUserAgent:
		return &c.UserAgent
	case FeatureWebRTC:
		return &c.WebRTC
	}
	return nil
}

// DefaultConfig returns the shipped configuration. Page contexts fall back
// to it whenever the persisted copy is absent or unreadable, so protections
// never silently disable on a cold start.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:   SchemaVersion,
		Enabled:         true,
		GlobalAllowlist: "",
		Canvas:          FeatureConfig{Enabled: true, NoiseLevel: 0.1},
		WebGL:           FeatureConfig{Enabled: true, Preset: "generic"},
		Font:            FeatureConfig{Enabled: true, NoiseLevel: 0.05},
		ClientRects:     FeatureConfig{Enabled: true, NoiseLevel: 0.02},
		WebGPU:          FeatureConfig{Enabled: true},
		AudioContext:    FeatureConfig{Enabled: true, NoiseLevel: 0.01},
		Timezone:        FeatureConfig{Enabled: false, TimezoneName: "UTC", TimezoneOffset: 0},
		UserAgent:       FeatureConfig{Enabled: true, Preset: "windows-chrome"},
		WebRTC:          FeatureConfig{Enabled: true, IPPolicy: "default_public_interface_only"},
		Proxy: ProxyConfig{
			Enabled:    false,
			Profiles:   []ProxyProfile{},
			Routes:     []Route{},
			BypassList: "localhost, 127.0.0.1",
		},
		Notifications: NotificationConfig{Enabled: true, ShowFingerprints: false},
	}
}

// legacyPresetAliases maps retired device-preset identifiers onto their
// canonical replacements.
var legacyPresetAliases = map[string]string{
	"windows10-chrome": "windows-chrome",
	"windows7-chrome":  "windows-chrome",
	"linux-chrome":     "windows-chrome",
	"macos-intel":      "macos-chrome",
	"webgl-nvidia":     "generic",
	"webgl-amd":        "generic",
}

// configMigrations are applied in order to any blob persisted under an older
// schema version. Structural backfill is handled by ParseConfig itself;
// these steps only rewrite values.
var configMigrations = []struct {
	version int
	apply   func(*Config)
}{
	// v2 introduced the webgpu section; nothing to rewrite.
	{version: 2, apply: func(c *Config) {}},
	// v3 collapsed the per-OS device presets onto canonical ones.
	{version: 3, apply: func(c *Config) {
		if canonical, ok := legacyPresetAliases[c.UserAgent.Preset]; ok {
			c.UserAgent.Preset = canonical
		}
		if canonical, ok := legacyPresetAliases[c.WebGL.Preset]; ok {
			c.WebGL.Preset = canonical
		}
	}},
}

// ParseConfig decodes a persisted blob into a complete configuration.
// Fields absent from the blob keep their default values, default allowlist
// entries are unioned into the user's lists without disturbing the user's
// ordering, and pending migrations are applied. A malformed blob is an
// error; callers fall back to DefaultConfig.
func ParseConfig(blob []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config blob: %w", err)
	}

	def := DefaultConfig()
	cfg.GlobalAllowlist = unionPatternLists(cfg.GlobalAllowlist, def.GlobalAllowlist)
	for _, id := range FeatureIDs() {
		fc := cfg.Feature(id)
		fc.Allowlist = unionPatternLists(fc.Allowlist, def.Feature(id).Allowlist)
	}
	cfg.Proxy.BypassList = unionPatternLists(cfg.Proxy.BypassList, def.Proxy.BypassList)

	for _, step := range configMigrations {
		if step.version > cfg.SchemaVersion {
			step.apply(&cfg)
		}
	}
	cfg.SchemaVersion = SchemaVersion
	return cfg, nil
}

// BlobCurrent reports whether a persisted blob carries the current schema
// version and contains the fields introduced by the latest migrations. The
// field probe catches partially written blobs whose version tag alone would
// pass.
func BlobCurrent(blob []byte) bool {
	if !gjson.ValidBytes(blob) {
		return false
	}
	if gjson.GetBytes(blob, "schemaVersion").Int() != SchemaVersion {
		return false
	}
	return gjson.GetBytes(blob, "webgpu").Exists() &&
		gjson.GetBytes(blob, "notifications").Exists()
}

// unionPatternLists merges two comma-joined pattern lists, keeping the
// first list's entries and order and appending entries from the second that
// are not already present (case-insensitive).
func unionPatternLists(primary, secondary string) string {
	seen := make(map[string]bool)
	var merged []string
	for _, list := range []string{primary, secondary} {
		for _, token := range strings.Split(list, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			key := strings.ToLower(token)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, token)
		}
	}
	return strings.Join(merged, ", ")
}
