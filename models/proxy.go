package models

import (
	"fmt"
	"strings"
)

// Proxy schemes accepted for upstream profiles.
const (
	SchemeSOCKS5 = "socks5"
	SchemeSOCKS4 = "socks4"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
)

type GeoInfo struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// Label renders a human-readable location for profile auto-naming.
func (g GeoInfo) Label() string {
	switch {
	case g.City != "" && g.Country != "":
		return g.City + ", " + g.Country
	case g.Country != "":
		return g.Country
	default:
		return "Unknown Location"
	}
}

// ProxyProfile describes one upstream endpoint. Names are unique within a
// configuration; AddProfile enforces that with an auto-suffix.
type ProxyProfile struct {
	Name      string   `json:"name"`
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Scheme    string   `json:"scheme"`
	RemoteDNS bool     `json:"remoteDNS"`
	Location  *GeoInfo `json:"location,omitempty"`
}

// Route binds a domain pattern to a profile by name. Routes are keyed by
// pattern: one profile per pattern.
type Route struct {
	Pattern string `json:"pattern"`
	Profile string `json:"profile"`
}

type ProxyConfig struct {
	Enabled       bool           `json:"enabled"`
	ActiveProfile string         `json:"activeProfile"`
	Profiles      []ProxyProfile `json:"profiles"`
	Routes        []Route        `json:"routes"`
	BypassList    string         `json:"bypassList"`
}

// ProfileByName returns the named profile, or nil.
func (p *ProxyConfig) ProfileByName(name string) *ProxyProfile {
	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			return &p.Profiles[i]
		}
	}
	return nil
}

// AddProfile appends a profile, de-duplicating its name with a numeric
// suffix ("NYC", "NYC-2", "NYC-3", ...). The stored profile is returned.
func (p *ProxyConfig) AddProfile(profile ProxyProfile) ProxyProfile {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = "profile"
	}
	candidate := name
	for n := 2; p.ProfileByName(candidate) != nil; n++ {
		candidate = fmt.Sprintf("%s-%d", name, n)
	}
	profile.Name = candidate
	p.Profiles = append(p.Profiles, profile)
	return profile
}

// RemoveProfile deletes the named profile and cascades: routes referencing
// it are dropped and the active-profile reference is cleared if it pointed
// at the removed profile. Returns false if no such profile existed.
func (p *ProxyConfig) RemoveProfile(name string) bool {
	idx := -1
	for i := range p.Profiles {
		if p.Profiles[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	p.Profiles = append(p.Profiles[:idx], p.Profiles[idx+1:]...)

	kept := p.Routes[:0]
	for _, r := range p.Routes {
		if r.Profile != name {
			kept = append(kept, r)
		}
	}
	p.Routes = kept

	if p.ActiveProfile == name {
		p.ActiveProfile = ""
	}
	return true
}

// SetRoute binds pattern to a profile, overwriting any existing binding for
// the same pattern.
func (p *ProxyConfig) SetRoute(pattern, profile string) {
	pattern = strings.TrimSpace(pattern)
	for i := range p.Routes {
		if strings.EqualFold(p.Routes[i].Pattern, pattern) {
			p.Routes[i].Profile = profile
			return
		}
	}
	p.Routes = append(p.Routes, Route{Pattern: pattern, Profile: profile})
}

// RemoveRoute drops the binding for pattern, if any.
func (p *ProxyConfig) RemoveRoute(pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	for i := range p.Routes {
		if strings.EqualFold(p.Routes[i].Pattern, pattern) {
			p.Routes = append(p.Routes[:i], p.Routes[i+1:]...)
			return true
		}
	}
	return false
}
