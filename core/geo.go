package core

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"fpshield/logger"
	"fpshield/models"
)

const geoBodyLimit = 64 << 10

type geoProvider struct {
	name        string
	urlTemplate string
	countryPath string
	cityPath    string
}

// GeoClient resolves a best-effort location for a proxy endpoint, used to
// auto-name profiles. Providers are tried in order and every failure falls
// through to the next; the final fallback is a placeholder so profile
// creation never blocks on a lookup.
type GeoClient struct {
	client    *http.Client
	providers []geoProvider
}

// NewGeoClient builds a client over the two known providers. The URL
// templates take the host as their single %s argument.
func NewGeoClient(primaryURL, secondaryURL string, timeout time.Duration) *GeoClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if primaryURL == "" {
		primaryURL = "http://ip-api.com/json/%s"
	}
	if secondaryURL == "" {
		secondaryURL = "https://ipwho.is/%s"
	}
	return &GeoClient{
		client: &http.Client{Timeout: timeout},
		providers: []geoProvider{
			{name: "ip-api", urlTemplate: primaryURL, countryPath: "country", cityPath: "city"},
			{name: "ipwhois", urlTemplate: secondaryURL, countryPath: "country", cityPath: "city"},
		},
	}
}

// Lookup resolves host. It always returns a usable GeoInfo; on total
// provider failure the placeholder label applies.
func (g *GeoClient) Lookup(host string) models.GeoInfo {
	for _, p := range g.providers {
		info, err := g.query(p, host)
		if err != nil {
			logger.Debug("GeoClient: provider %s failed for %s: %v", p.name, host, err)
			continue
		}
		return info
	}
	logger.Debug("GeoClient: all providers failed for %s, using placeholder", host)
	return models.GeoInfo{}
}

func (g *GeoClient) query(p geoProvider, host string) (models.GeoInfo, error) {
	resp, err := g.client.Get(fmt.Sprintf(p.urlTemplate, host))
	if err != nil {
		return models.GeoInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GeoInfo{}, fmt.Errorf("provider %s returned %s", p.name, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, geoBodyLimit))
	if err != nil {
		return models.GeoInfo{}, err
	}
	country := gjson.GetBytes(body, p.countryPath).String()
	if country == "" {
		return models.GeoInfo{}, fmt.Errorf("provider %s returned no country for %s", p.name, host)
	}
	return models.GeoInfo{
		Country: country,
		City:    gjson.GetBytes(body, p.cityPath).String(),
	}, nil
}
