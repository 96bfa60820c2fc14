package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock drives the coordinator's lazy expiry deterministically.
type testClock struct {
	now time.Time
}

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCoordinator(hooks GrantHooks) (*BypassCoordinator, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	b := NewBypassCoordinator(DefaultBypassTTL, DefaultReloadDelay, hooks)
	b.now = func() time.Time { return clock.now }
	return b, clock
}

func TestDetectGrantsAndFiresHooks(t *testing.T) {
	var reapplied, reloads []string
	b, _ := newTestCoordinator(GrantHooks{
		ReapplyUserAgentHook: func(h string) { reapplied = append(reapplied, h) },
		ScheduleReload:       func(h string, _ time.Duration) { reloads = append(reloads, h) },
	})

	ignored, err := b.Detect("example.com")
	require.NoError(t, err)
	assert.False(t, ignored)
	assert.Equal(t, []string{"example.com"}, reapplied)
	assert.Equal(t, []string{"example.com"}, reloads)
}

func TestDetectIdempotentWithinTTL(t *testing.T) {
	fired := 0
	b, clock := newTestCoordinator(GrantHooks{
		ScheduleReload: func(string, time.Duration) { fired++ },
	})

	ignored, err := b.Detect("example.com")
	require.NoError(t, err)
	assert.False(t, ignored)

	clock.advance(30 * time.Second)
	ignored, err = b.Detect("example.com")
	require.NoError(t, err)
	assert.True(t, ignored, "re-detection inside the TTL must be ignored")
	assert.Equal(t, 1, fired, "hooks fire once per grant")

	// The ignored call must not have reset the expiry clock: the original
	// grant still expires at its original deadline.
	clock.advance(DefaultBypassTTL - 30*time.Second)
	status := b.Query("example.com")
	assert.False(t, status.Active)
}

func TestDetectMissingHostname(t *testing.T) {
	b, _ := newTestCoordinator(GrantHooks{})
	_, err := b.Detect("")
	assert.ErrorIs(t, err, ErrMissingHostname)
	_, err = b.Detect("   ")
	assert.ErrorIs(t, err, ErrMissingHostname)
}

func TestQueryAncestorPropagation(t *testing.T) {
	b, _ := newTestCoordinator(GrantHooks{})
	_, err := b.Detect("example.com")
	require.NoError(t, err)

	status := b.Query("sub.example.com")
	assert.True(t, status.Active)
	assert.Equal(t, "example.com", status.MatchedDomain)

	status = b.Query("a.b.example.com")
	assert.True(t, status.Active)
	assert.Equal(t, "example.com", status.MatchedDomain)

	assert.False(t, b.Query("example.org").Active)
	// Propagation only walks up, never down or sideways.
	assert.False(t, b.Query("otherexample.com").Active)
}

func TestQueryTTLBoundary(t *testing.T) {
	b, clock := newTestCoordinator(GrantHooks{})
	_, err := b.Detect("a.com")
	require.NoError(t, err)

	clock.advance(179 * time.Second)
	status := b.Query("a.com")
	assert.True(t, status.Active)
	assert.InDelta(t, 1.0, status.Remaining.Seconds(), 0.01)

	clock.advance(2 * time.Second)
	assert.False(t, b.Query("a.com").Active)
	assert.Equal(t, 0, b.ActiveCount(), "expired entry must be purged")
}

func TestExpiryDoesNotAffectOtherHosts(t *testing.T) {
	b, clock := newTestCoordinator(GrantHooks{})
	_, err := b.Detect("old.com")
	require.NoError(t, err)

	clock.advance(2 * time.Minute)
	_, err = b.Detect("fresh.com")
	require.NoError(t, err)

	clock.advance(2 * time.Minute) // old.com now expired, fresh.com not
	assert.False(t, b.Query("old.com").Active)
	assert.True(t, b.Query("fresh.com").Active)
}

func TestDetectAfterExpiryGrantsAgain(t *testing.T) {
	fired := 0
	b, clock := newTestCoordinator(GrantHooks{
		ScheduleReload: func(string, time.Duration) { fired++ },
	})

	_, err := b.Detect("example.com")
	require.NoError(t, err)
	clock.advance(DefaultBypassTTL + time.Second)

	ignored, err := b.Detect("example.com")
	require.NoError(t, err)
	assert.False(t, ignored, "a fresh detection after expiry is a new grant")
	assert.Equal(t, 2, fired)
}

func TestIsChallengeInfraHost(t *testing.T) {
	assert.True(t, IsChallengeInfraHost("challenges.cloudflare.com"))
	assert.True(t, IsChallengeInfraHost("cdn.challenges.cloudflare.com"))
	assert.True(t, IsChallengeInfraHost("Challenges.Cloudflare.COM"))
	assert.False(t, IsChallengeInfraHost("cloudflare.com"))
	assert.False(t, IsChallengeInfraHost("notchallenges.cloudflare.com.evil.net"))
}
