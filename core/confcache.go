package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fpshield/logger"
	"fpshield/models"
)

// DefaultRefreshTTL throttles re-reads of the authoritative store when
// many contexts initialize near-simultaneously.
const DefaultRefreshTTL = 5 * time.Second

// ConfigSource is the authoritative persistent store behind the hub.
type ConfigSource interface {
	// LoadConfig returns a complete configuration, falling back to
	// defaults internally when the stored blob is absent or corrupt.
	LoadConfig() (models.Config, error)
	// SaveConfig persists cfg. wrote is false when the serialized form was
	// byte-identical to the stored one and the write was skipped.
	SaveConfig(cfg models.Config) (wrote bool, err error)
}

// ConfigHub owns the in-memory configuration snapshot and distributes it to
// connected page contexts. Reads are served from the snapshot with
// stale-while-revalidate semantics: a stale snapshot is returned as-is and
// a throttled asynchronous refresh is kicked off. Saves update the snapshot
// synchronously and push it to every subscriber.
type ConfigHub struct {
	mu          sync.Mutex
	source      ConfigSource
	current     models.Config
	loaded      bool
	lastRefresh time.Time
	refreshing  bool
	refreshTTL  time.Duration
	subscribers map[string]chan models.PushEvent
	now         func() time.Time
}

func NewConfigHub(source ConfigSource, refreshTTL time.Duration) *ConfigHub {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &ConfigHub{
		source:      source,
		refreshTTL:  refreshTTL,
		subscribers: make(map[string]chan models.PushEvent),
		now:         time.Now,
	}
}

// Snapshot returns the current configuration without blocking on storage.
// Before the first successful load, callers get the hardcoded defaults so
// protections never silently disable on a cold start. A snapshot older
// than the refresh TTL triggers one asynchronous reload.
func (h *ConfigHub) Snapshot() models.Config {
	h.mu.Lock()
	if !h.loaded {
		h.current = models.DefaultConfig()
	}
	cfg := h.current
	stale := !h.loaded || h.now().Sub(h.lastRefresh) > h.refreshTTL
	if stale && !h.refreshing {
		h.refreshing = true
		go func() {
			if err := h.Refresh(); err != nil {
				logger.Error("ConfigHub: async refresh failed: %v", err)
			}
		}()
	}
	h.mu.Unlock()
	return cfg
}

// Refresh synchronously reloads the snapshot from the authoritative store.
func (h *ConfigHub) Refresh() error {
	cfg, err := h.source.LoadConfig()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshing = false
	if err != nil {
		return err
	}
	h.current = cfg
	h.loaded = true
	h.lastRefresh = h.now()
	return nil
}

// Update persists cfg, installs it as the current snapshot, and pushes it
// to all subscribers.
func (h *ConfigHub) Update(cfg models.Config) error {
	cfg.SchemaVersion = models.SchemaVersion
	wrote, err := h.source.SaveConfig(cfg)
	if err != nil {
		return err
	}
	if !wrote {
		logger.Debug("ConfigHub: save skipped, serialized config unchanged")
	}

	h.mu.Lock()
	h.current = cfg
	h.loaded = true
	h.lastRefresh = h.now()
	snapshot := cfg
	h.broadcastLocked(models.PushEvent{Type: "config-pushed", Config: &snapshot})
	h.mu.Unlock()
	return nil
}

// Reset restores the shipped defaults and distributes them.
func (h *ConfigHub) Reset() (models.Config, error) {
	cfg := models.DefaultConfig()
	if err := h.Update(cfg); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

// Broadcast delivers a non-config push event (e.g. a reload signal) to all
// subscribers.
func (h *ConfigHub) Broadcast(event models.PushEvent) {
	h.mu.Lock()
	h.broadcastLocked(event)
	h.mu.Unlock()
}

// Subscribe registers a page context for push events. The returned channel
// is buffered; a subscriber that stops draining simply misses pushes, it
// never blocks the hub.
func (h *ConfigHub) Subscribe() (string, <-chan models.PushEvent) {
	id := uuid.NewString()
	ch := make(chan models.PushEvent, 8)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *ConfigHub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// SubscriberCount reports the number of connected contexts, for
// diagnostics.
func (h *ConfigHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *ConfigHub) broadcastLocked(event models.PushEvent) {
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Delivery failure to a broadcast receiver is expected and
			// swallowed; the context catches up on its next refresh.
			logger.Debug("ConfigHub: subscriber %s not draining, push dropped", id)
		}
	}
}
