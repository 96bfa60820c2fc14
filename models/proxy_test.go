package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddProfileDeduplicatesNames(t *testing.T) {
	var p ProxyConfig
	first := p.AddProfile(ProxyProfile{Name: "NYC", Host: "10.0.0.1", Port: 1080, Scheme: SchemeSOCKS5})
	second := p.AddProfile(ProxyProfile{Name: "NYC", Host: "10.0.0.2", Port: 1080, Scheme: SchemeSOCKS5})
	third := p.AddProfile(ProxyProfile{Name: "NYC", Host: "10.0.0.3", Port: 1080, Scheme: SchemeSOCKS5})

	assert.Equal(t, "NYC", first.Name)
	assert.Equal(t, "NYC-2", second.Name)
	assert.Equal(t, "NYC-3", third.Name)

	blank := p.AddProfile(ProxyProfile{Host: "10.0.0.4", Port: 1080, Scheme: SchemeHTTP})
	assert.Equal(t, "profile", blank.Name)
}

func TestRemoveProfileCascades(t *testing.T) {
	var p ProxyConfig
	p.AddProfile(ProxyProfile{Name: "NYC", Host: "10.0.0.1", Port: 1080, Scheme: SchemeSOCKS5})
	p.AddProfile(ProxyProfile{Name: "LON", Host: "10.0.0.2", Port: 1080, Scheme: SchemeSOCKS5})
	p.ActiveProfile = "NYC"
	p.SetRoute("*.example.com", "NYC")
	p.SetRoute("*.other.org", "LON")

	assert.True(t, p.RemoveProfile("NYC"))

	assert.Nil(t, p.ProfileByName("NYC"))
	assert.Equal(t, "", p.ActiveProfile, "active reference to the removed profile is cleared")
	assert.Equal(t, []Route{{Pattern: "*.other.org", Profile: "LON"}}, p.Routes,
		"routes to the removed profile are dropped")

	assert.False(t, p.RemoveProfile("NYC"), "second removal finds nothing")
}

func TestSetRouteOverwritesByPattern(t *testing.T) {
	var p ProxyConfig
	p.SetRoute("*.example.com", "NYC")
	p.SetRoute("*.Example.COM", "LON")

	assert.Len(t, p.Routes, 1)
	assert.Equal(t, "LON", p.Routes[0].Profile)
}

func TestRemoveRoute(t *testing.T) {
	var p ProxyConfig
	p.SetRoute("*.example.com", "NYC")

	assert.True(t, p.RemoveRoute("*.EXAMPLE.com"))
	assert.Empty(t, p.Routes)
	assert.False(t, p.RemoveRoute("*.example.com"))
}

func TestGeoInfoLabel(t *testing.T) {
	assert.Equal(t, "Berlin, Germany", GeoInfo{Country: "Germany", City: "Berlin"}.Label())
	assert.Equal(t, "Germany", GeoInfo{Country: "Germany"}.Label())
	assert.Equal(t, "Unknown Location", GeoInfo{}.Label())
}
