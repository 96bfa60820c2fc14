package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fpshield/models"
)

type fakeConfigSource struct {
	mu        sync.Mutex
	stored    models.Config
	loadCount int
	saveCount int
	loadErr   error
}

func (s *fakeConfigSource) LoadConfig() (models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCount++
	if s.loadErr != nil {
		return models.Config{}, s.loadErr
	}
	return s.stored, nil
}

func (s *fakeConfigSource) SaveConfig(cfg models.Config) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	s.stored = cfg
	return true, nil
}

func (s *fakeConfigSource) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCount
}

func TestSnapshotDefaultsBeforeFirstLoad(t *testing.T) {
	src := &fakeConfigSource{loadErr: errors.New("store unavailable")}
	hub := NewConfigHub(src, DefaultRefreshTTL)

	cfg := hub.Snapshot()
	assert.Equal(t, models.DefaultConfig(), cfg, "cold start serves hardcoded defaults")
}

func TestSnapshotTriggersAsyncRefresh(t *testing.T) {
	stored := models.DefaultConfig()
	stored.GlobalAllowlist = "stored.example.com"
	src := &fakeConfigSource{stored: stored}
	hub := NewConfigHub(src, DefaultRefreshTTL)

	hub.Snapshot()
	require.Eventually(t, func() bool { return src.loads() == 1 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, "stored.example.com", hub.Snapshot().GlobalAllowlist)
}

func TestSnapshotRefreshThrottled(t *testing.T) {
	src := &fakeConfigSource{stored: models.DefaultConfig()}
	hub := NewConfigHub(src, time.Hour)

	require.NoError(t, hub.Refresh())
	for i := 0; i < 20; i++ {
		hub.Snapshot()
	}
	assert.Equal(t, 1, src.loads(), "fresh snapshot must not hit the store")
}

func TestRefreshErrorKeepsCurrentSnapshot(t *testing.T) {
	src := &fakeConfigSource{stored: models.DefaultConfig()}
	hub := NewConfigHub(src, DefaultRefreshTTL)
	require.NoError(t, hub.Refresh())

	src.mu.Lock()
	src.loadErr = errors.New("disk gone")
	src.mu.Unlock()

	assert.Error(t, hub.Refresh())
	assert.Equal(t, models.DefaultConfig(), hub.Snapshot())
}

func TestUpdatePersistsAndBroadcasts(t *testing.T) {
	src := &fakeConfigSource{}
	hub := NewConfigHub(src, time.Hour)

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	cfg := models.DefaultConfig()
	cfg.Canvas.NoiseLevel = 0.9
	require.NoError(t, hub.Update(cfg))

	select {
	case event := <-ch:
		assert.Equal(t, "config-pushed", event.Type)
		require.NotNil(t, event.Config)
		assert.Equal(t, 0.9, event.Config.Canvas.NoiseLevel)
		assert.Equal(t, models.SchemaVersion, event.Config.SchemaVersion)
	case <-time.After(time.Second):
		t.Fatal("no push event received")
	}

	assert.Equal(t, 0.9, hub.Snapshot().Canvas.NoiseLevel)
	assert.Equal(t, 1, src.saveCount)
}

func TestResetDistributesDefaults(t *testing.T) {
	src := &fakeConfigSource{}
	hub := NewConfigHub(src, time.Hour)

	custom := models.DefaultConfig()
	custom.Enabled = false
	require.NoError(t, hub.Update(custom))

	cfg, err := hub.Reset()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, hub.Snapshot().Enabled)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewConfigHub(&fakeConfigSource{}, time.Hour)
	id, ch := hub.Subscribe()
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcastNeverBlocksOnSlowSubscriber(t *testing.T) {
	hub := NewConfigHub(&fakeConfigSource{}, time.Hour)
	id, _ := hub.Subscribe() // never drained
	defer hub.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			hub.Broadcast(models.PushEvent{Type: "reload", Hostname: "example.com"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a non-draining subscriber")
	}
}
