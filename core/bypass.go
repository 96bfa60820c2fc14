package core

import (
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBypassTTL is how long a granted challenge bypass stays
	// active. Long enough for a user to click through a challenge, short
	// enough that spoofing resumes promptly.
	DefaultBypassTTL = 3 * time.Minute

	// DefaultReloadDelay is the pause between granting a bypass and
	// signalling the page reload, so the bypass flag is durably readable
	// before the reloaded page initializes its protections.
	DefaultReloadDelay = 1 * time.Second

	// ChallengeInfraDomain is the challenge widget's own origin. It must
	// always see the real browser signature or the challenge can never
	// issue a passing token, so it is exempt from User-Agent spoofing
	// regardless of bypass state.
	ChallengeInfraDomain = "challenges.cloudflare.com"
)

// ErrMissingHostname rejects detection requests whose sender context could
// not determine a hostname (e.g. sandboxed opaque-origin frames). Guessing
// would grant bypasses to the wrong site.
var ErrMissingHostname = errors.New("missing hostname in bypass request")

// IsChallengeInfraHost reports whether hostname is the challenge service
// itself or one of its subdomains.
func IsChallengeInfraHost(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	return hostname == ChallengeInfraDomain ||
		strings.HasSuffix(hostname, "."+ChallengeInfraDomain)
}

// BypassStatus is the answer to a bypass query. MatchedDomain names the
// entry that covered the hostname, which may be an ancestor domain.
type BypassStatus struct {
	Active        bool
	MatchedDomain string
	Remaining     time.Duration
}

// GrantHooks are the side effects fired exactly once per granted bypass,
// outside the coordinator's lock.
type GrantHooks struct {
	// ReapplyUserAgentHook re-installs the User-Agent rewrite so it starts
	// exempting the hostname immediately.
	ReapplyUserAgentHook func(hostname string)
	// ScheduleReload asks the page context to reload after delay.
	ScheduleReload func(hostname string, delay time.Duration)
}

// BypassCoordinator tracks per-hostname challenge-bypass grants with TTL
// expiry. Entries live only in memory; expiry is evaluated lazily on every
// call, there is no background timer.
type BypassCoordinator struct {
	mu          sync.Mutex
	entries     map[string]time.Time
	ttl         time.Duration
	reloadDelay time.Duration
	hooks       GrantHooks
	now         func() time.Time
}

func NewBypassCoordinator(ttl, reloadDelay time.Duration, hooks GrantHooks) *BypassCoordinator {
	if ttl <= 0 {
		ttl = DefaultBypassTTL
	}
	if reloadDelay <= 0 {
		reloadDelay = DefaultReloadDelay
	}
	return &BypassCoordinator{
		entries:     make(map[string]time.Time),
		ttl:         ttl,
		reloadDelay: reloadDelay,
		hooks:       hooks,
		now:         time.Now,
	}
}

// Detect records a challenge detection for hostname. If an unexpired grant
// already exists the call is ignored (true, nil) and the expiry clock is
// NOT reset -- multiple frames observing the same challenge must not cause
// a reload storm. A fresh grant fires the grant hooks.
func (b *BypassCoordinator) Detect(hostname string) (ignored bool, err error) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return false, ErrMissingHostname
	}

	b.mu.Lock()
	now := b.now()
	b.purgeExpiredLocked(now)
	if _, active := b.entries[hostname]; active {
		b.mu.Unlock()
		return true, nil
	}
	b.entries[hostname] = now
	hooks := b.hooks
	delay := b.reloadDelay
	b.mu.Unlock()

	if hooks.ReapplyUserAgentHook != nil {
		hooks.ReapplyUserAgentHook(hostname)
	}
	if hooks.ScheduleReload != nil {
		hooks.ScheduleReload(hostname, delay)
	}
	return false, nil
}

// Query walks hostname's label suffixes from most specific to the root
// ("a.b.example.com", "b.example.com", "example.com") and returns the
// first unexpired grant, so a bypass granted for a parent domain covers
// subdomains and iframes that never independently detected the challenge.
func (b *BypassCoordinator) Query(hostname string) BypassStatus {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return BypassStatus{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.purgeExpiredLocked(now)
	for candidate := hostname; candidate != ""; candidate = parentDomain(candidate) {
		if since, ok := b.entries[candidate]; ok {
			return BypassStatus{
				Active:        true,
				MatchedDomain: candidate,
				Remaining:     b.ttl - now.Sub(since),
			}
		}
	}
	return BypassStatus{}
}

// ActiveCount reports the number of unexpired grants, for diagnostics.
func (b *BypassCoordinator) ActiveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purgeExpiredLocked(b.now())
	return len(b.entries)
}

func (b *BypassCoordinator) purgeExpiredLocked(now time.Time) {
	for host, since := range b.entries {
		if now.Sub(since) >= b.ttl {
			delete(b.entries, host)
		}
	}
}

func parentDomain(hostname string) string {
	idx := strings.Index(hostname, ".")
	if idx < 0 {
		return ""
	}
	return hostname[idx+1:]
}
