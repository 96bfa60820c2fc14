package core

import (
	"time"

	"fpshield/models"
)

// State is the orchestrator's single owned bundle of mutable cross-cutting
// state: the configuration hub, the bypass coordinator, the per-tab
// feature ledger and the proxy adapter all hang off it. Handlers receive a
// *State instead of reaching for globals, which keeps the lifecycle and
// test-resettability explicit.
type State struct {
	Hub    *ConfigHub
	Bypass *BypassCoordinator
	Ledger *FeatureLedger
	Proxy  *ProxyAdapter
	Egress *EgressEngine
	Geo    *GeoClient
}

// StateOptions carries the tunables wired in from the bootstrap config.
type StateOptions struct {
	BypassTTL     time.Duration
	ReloadDelay   time.Duration
	RefreshTTL    time.Duration
	GeoPrimaryURL string
	GeoSecondary  string
	GeoTimeout    time.Duration
}

// NewState assembles the orchestrator. A granted bypass re-applies the
// User-Agent hook at the egress engine and schedules a reload push through
// the hub once the bypass flag is durably readable.
func NewState(source ConfigSource, opts StateOptions) *State {
	s := &State{}

	s.Hub = NewConfigHub(source, opts.RefreshTTL)
	s.Ledger = NewFeatureLedger()
	s.Geo = NewGeoClient(opts.GeoPrimaryURL, opts.GeoSecondary, opts.GeoTimeout)

	s.Bypass = NewBypassCoordinator(opts.BypassTTL, opts.ReloadDelay, GrantHooks{
		ReapplyUserAgentHook: func(hostname string) {
			// The engine consults bypass state per request; re-applying
			// the current config flushes any cached routing decisions.
			cfg := s.Hub.Snapshot()
			s.Egress.Apply(cfg, s.Egress.Mode())
		},
		ScheduleReload: func(hostname string, delay time.Duration) {
			time.AfterFunc(delay, func() {
				s.Hub.Broadcast(models.PushEvent{Type: "reload", Hostname: hostname})
			})
		},
	})

	s.Egress = NewEgressEngine(s.Bypass)
	s.Proxy = NewProxyAdapter(func(cfg models.Config, mode EgressMode) {
		s.Egress.Apply(cfg, mode)
	})
	return s
}

// Config returns the current configuration snapshot.
func (s *State) Config() models.Config {
	return s.Hub.Snapshot()
}

// UpdateConfig persists and distributes cfg, then reapplies the subsystems
// that depend on it.
func (s *State) UpdateConfig(cfg models.Config) error {
	if err := s.Hub.Update(cfg); err != nil {
		return err
	}
	s.Egress.Apply(cfg, ComputeEgressMode(&cfg))
	return nil
}

// ResetConfig restores the shipped defaults.
func (s *State) ResetConfig() (models.Config, error) {
	cfg, err := s.Hub.Reset()
	if err != nil {
		return models.Config{}, err
	}
	s.Egress.Apply(cfg, ComputeEgressMode(&cfg))
	return cfg, nil
}

// DropTab clears all per-tab state when a tab closes.
func (s *State) DropTab(tabID int64) {
	s.Ledger.DropTab(tabID)
	s.Proxy.DropTab(tabID)
}
