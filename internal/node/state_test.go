package node

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusVariants(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		text    string
		running bool
		custom  bool
		healthy bool
	}{
		{name: "waiting", status: Waiting, text: "waiting", healthy: true},
		{name: "running", status: Running, text: "running", running: true, healthy: true},
		{name: "custom", status: Custom("maintenance"), text: "maintenance", custom: true},
		{name: "custom spelled as standard", status: Custom("running"), text: "running", running: true, healthy: true},
		{name: "crashed", status: ParseStatus("crashed"), text: "crashed", custom: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.status.String())
			assert.Equal(t, tt.running, tt.status.IsRunning())
			assert.Equal(t, tt.custom, tt.status.IsCustom())
			assert.Equal(t, tt.healthy, tt.status.Healthy())
		})
	}
}

func TestStatusJSONIsPlainString(t *testing.T) {
	out, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{Status: Custom("maintenance")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"maintenance"}`, string(out))

	var decoded struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"running"}`), &decoded))
	assert.Equal(t, Running, decoded.Status)
}

func TestNewStateStartsWaiting(t *testing.T) {
	peers := []string{"a:1", "b:2"}
	s := NewState(peers)

	assert.Equal(t, Waiting, s.Status())
	assert.Equal(t, peers, s.Peers())
	assert.Nil(t, s.LastUpdate())

	// The caller's slice is not aliased
	peers[0] = "mutated:1"
	assert.Equal(t, "a:1", s.Peers()[0])
}

func TestStartStopTransitions(t *testing.T) {
	s := NewState(nil)

	assert.True(t, s.StartRunning())
	assert.False(t, s.StartRunning(), "second start without a stop must be refused")
	assert.True(t, s.Status().IsRunning())

	assert.True(t, s.StopRunning(Waiting))
	assert.False(t, s.StopRunning(Waiting))
	assert.Equal(t, Waiting, s.Status())
}

func TestSetPeersIfEmpty(t *testing.T) {
	s := NewState(nil)

	assert.True(t, s.SetPeersIfEmpty([]string{"a:1"}))
	assert.False(t, s.SetPeersIfEmpty([]string{"b:2"}))
	assert.Equal(t, []string{"a:1"}, s.Peers())
}

func TestOverrideDeadline(t *testing.T) {
	s := NewState(nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, s.OverrideActive(now))
	assert.False(t, s.OverrideExpired(now))

	s.SetOverride(Custom("maintenance"), now.Add(30*time.Second))
	assert.True(t, s.Status().IsCustom())
	assert.True(t, s.OverrideActive(now.Add(10*time.Second)))
	assert.False(t, s.OverrideExpired(now.Add(10*time.Second)))
	assert.True(t, s.OverrideExpired(now.Add(30*time.Second)))
	assert.False(t, s.OverrideActive(now.Add(31*time.Second)))

	s.ClearOverride()
	assert.Equal(t, Waiting, s.Status())
	assert.False(t, s.OverrideExpired(now.Add(time.Hour)))
}

func TestLastUpdateIsCopied(t *testing.T) {
	s := NewState(nil)
	p := Payload{"x": 1}
	s.SetLastUpdate(p)

	p["x"] = 2
	assert.Equal(t, 1, s.LastUpdate()["x"])

	got := s.LastUpdate()
	got["y"] = true
	assert.NotContains(t, s.LastUpdate(), "y")
}

// TestConcurrentAccess exercises every accessor from many goroutines; run
// with -race to detect unsynchronized paths.
func TestConcurrentAccess(t *testing.T) {
	s := NewState(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				switch j % 5 {
				case 0:
					s.StartRunning()
				case 1:
					s.StopRunning(Waiting)
				case 2:
					s.SetPeers([]string{fmt.Sprintf("10.0.0.%d:80", i)})
				case 3:
					s.SetLastUpdate(Payload{"writer": i})
				default:
					snap := s.Snapshot()
					_ = snap.Status.String()
					_ = len(snap.Peers)
				}
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Peers, 1)
	assert.Contains(t, snap.LastUpdate, "writer")
}
