package core

import (
	"strings"
	"sync"

	"fpshield/logger"
	"fpshield/models"
)

// EgressMode is how network egress is configured.
type EgressMode int

const (
	// ModeDirect sends all traffic straight out (system routing).
	ModeDirect EgressMode = iota
	// ModeFixed sends all traffic through the single active profile.
	ModeFixed
	// ModeScript routes per destination: domain routes, bypass list and
	// allowlist decisions are evaluated request by request.
	ModeScript
)

func (m EgressMode) String() string {
	switch m {
	case ModeFixed:
		return "fixed"
	case ModeScript:
		return "script"
	default:
		return "direct"
	}
}

// ComputeEgressMode picks the egress mode for cfg: direct when proxying is
// off or nothing is configured, fixed when a single active profile needs no
// per-destination logic, script when domain routes or allowlist-driven
// bypassing are in play.
func ComputeEgressMode(cfg *models.Config) EgressMode {
	if !cfg.Proxy.Enabled {
		return ModeDirect
	}
	active := cfg.Proxy.ProfileByName(cfg.Proxy.ActiveProfile)
	if active == nil && len(cfg.Proxy.Routes) == 0 {
		return ModeDirect
	}
	if len(cfg.Proxy.Routes) > 0 ||
		strings.TrimSpace(cfg.Proxy.BypassList) != "" ||
		strings.TrimSpace(cfg.GlobalAllowlist) != "" {
		return ModeScript
	}
	return ModeFixed
}

// NavAction is the verdict on a main-frame navigation intent.
type NavAction int

const (
	// NavProceed lets the navigation continue untouched.
	NavProceed NavAction = iota
	// NavCancelAndReplay cancels the in-flight request; the caller must
	// re-issue the same navigation, which will then proceed direct-mode.
	NavCancelAndReplay
)

// NavDecision reports the action plus whether proxying was toggled as a
// side effect.
type NavDecision struct {
	Action         NavAction
	ProxyDisabled  bool
	ProxyReenabled bool
	Mode           EgressMode
}

// ApplyFunc reconfigures actual network egress. It must complete before
// DecideNavigation returns so that a replayed request can no longer transit
// the proxy.
type ApplyFunc func(cfg models.Config, mode EgressMode)

// ProxyAdapter decides, per navigation, whether egress must bypass the
// configured proxy. Toggling the proxy only after a navigation has started
// would let the first allowlisted request leak through it, so allowlisted
// destinations get a cancel-and-replay: the request is cancelled, egress is
// flipped to direct, and the replay (marked per tab) is let through without
// re-interception.
type ProxyAdapter struct {
	mu                   sync.Mutex
	disabledForAllowlist bool
	pendingReplay        map[int64]string
	apply                ApplyFunc
}

func NewProxyAdapter(apply ApplyFunc) *ProxyAdapter {
	return &ProxyAdapter{
		pendingReplay: make(map[int64]string),
		apply:         apply,
	}
}

// DisabledForAllowlist reports whether egress is currently forced direct
// because the active tab is on an allowlisted destination.
func (a *ProxyAdapter) DisabledForAllowlist() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disabledForAllowlist
}

// DecideNavigation evaluates a main-frame navigation intent for tabID.
func (a *ProxyAdapter) DecideNavigation(cfg *models.Config, tabID int64, rawURL string) NavDecision {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !cfg.Proxy.Enabled {
		return NavDecision{Action: NavProceed, Mode: ModeDirect}
	}

	// A replay of a navigation this adapter cancelled: let it through
	// without re-evaluating, or it would be cancelled forever.
	if pending, ok := a.pendingReplay[tabID]; ok && pending == rawURL {
		delete(a.pendingReplay, tabID)
		return NavDecision{Action: NavProceed, Mode: ModeDirect}
	}

	hostname := HostnameFromURL(rawURL)
	if hostname == "" {
		return NavDecision{Action: NavProceed, Mode: ComputeEgressMode(cfg)}
	}

	if IsAllowlisted(hostname, cfg.GlobalAllowlist) {
		if a.disabledForAllowlist {
			return NavDecision{Action: NavProceed, Mode: ModeDirect}
		}
		a.disabledForAllowlist = true
		a.pendingReplay[tabID] = rawURL
		a.applyLocked(cfg, ModeDirect)
		logger.ProxyInfo("ProxyAdapter: %s is allowlisted, cancelling navigation in tab %d for direct replay", hostname, tabID)
		return NavDecision{Action: NavCancelAndReplay, ProxyDisabled: true, Mode: ModeDirect}
	}

	if a.disabledForAllowlist {
		a.disabledForAllowlist = false
		mode := ComputeEgressMode(cfg)
		a.applyLocked(cfg, mode)
		logger.ProxyInfo("ProxyAdapter: leaving allowlisted destination, re-enabling %s egress for tab %d", mode, tabID)
		return NavDecision{Action: NavProceed, ProxyReenabled: true, Mode: mode}
	}

	return NavDecision{Action: NavProceed, Mode: ComputeEgressMode(cfg)}
}

// DropTab clears any pending replay marker for a closed tab.
func (a *ProxyAdapter) DropTab(tabID int64) {
	a.mu.Lock()
	delete(a.pendingReplay, tabID)
	a.mu.Unlock()
}

func (a *ProxyAdapter) applyLocked(cfg *models.Config, mode EgressMode) {
	if a.apply != nil {
		a.apply(*cfg, mode)
	}
}
