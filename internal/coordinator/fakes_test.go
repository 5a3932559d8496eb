package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/config"
)

var errRefused = errors.New("connection refused")

// notification is one Notify call seen by fakePeers.
type notification struct {
	Addr   string
	Action string
}

// fakePeers is an in-memory PeerClient. Unknown addresses are unreachable.
type fakePeers struct {
	mu       sync.Mutex
	statuses map[string]cluster.StatusResult
	syncs    map[string]cluster.SyncResult
	notified []notification
	pushed   map[string]cluster.Payload
	queried  []string
	onNotify func(addr, action string)
}

func newFakePeers() *fakePeers {
	return &fakePeers{
		statuses: make(map[string]cluster.StatusResult),
		syncs:    make(map[string]cluster.SyncResult),
		pushed:   make(map[string]cluster.Payload),
	}
}

func (f *fakePeers) setStatus(addr string, res cluster.StatusResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[addr] = res
}

func (f *fakePeers) setSync(addr string, res cluster.SyncResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs[addr] = res
}

func (f *fakePeers) QueryStatus(_ context.Context, addr string) cluster.StatusResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, addr)
	if res, ok := f.statuses[addr]; ok {
		return res
	}
	return unreachable()
}

func (f *fakePeers) Notify(_ context.Context, addr, action string) error {
	f.mu.Lock()
	f.notified = append(f.notified, notification{Addr: addr, Action: action})
	hook := f.onNotify
	_, known := f.statuses[addr]
	f.mu.Unlock()

	if hook != nil {
		hook(addr, action)
	}
	if !known {
		return errRefused
	}
	return nil
}

func (f *fakePeers) FetchLastUpdate(_ context.Context, addr string) cluster.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.syncs[addr]; ok {
		return res
	}
	return cluster.SyncResult{Outcome: cluster.OutcomeUnreachable, Err: errRefused}
}

func (f *fakePeers) PushUpdate(_ context.Context, addr string, payload cluster.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed[addr] = payload
	if _, ok := f.statuses[addr]; !ok {
		return errRefused
	}
	return nil
}

func (f *fakePeers) notifications() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.notified...)
}

func (f *fakePeers) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queried...)
}

func answered(status string, slaves ...string) cluster.StatusResult {
	return cluster.StatusResult{
		Outcome:  cluster.OutcomeOK,
		Response: cluster.StatusResponse{Status: status, Slaves: slaves},
	}
}

func unreachable() cluster.StatusResult {
	return cluster.StatusResult{Outcome: cluster.OutcomeUnreachable, Err: errRefused}
}

func timedOut() cluster.StatusResult {
	return cluster.StatusResult{Outcome: cluster.OutcomeTimeout, Err: context.DeadlineExceeded}
}

// recorder captures lifecycle callback invocations.
type recorder struct {
	mu         sync.Mutex
	starts     int
	ports      []int
	transports []Transport
	stops      []StopReason
	updates    []cluster.Payload
}

func (r *recorder) register(c *Controller) {
	c.OnStart(func(_ context.Context, transport Transport, port int) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.starts++
		r.ports = append(r.ports, port)
		r.transports = append(r.transports, transport)
		return nil
	})
	c.OnStop(func(_ context.Context, reason StopReason) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stops = append(r.stops, reason)
		return nil
	})
	c.OnUpdate(func(_ context.Context, payload cluster.Payload) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.updates = append(r.updates, payload)
		return nil
	})
}

func (r *recorder) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *recorder) stopReasons() []StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StopReason(nil), r.stops...)
}

func (r *recorder) updatePayloads() []cluster.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cluster.Payload(nil), r.updates...)
}

func masterConfig(self string, slaves ...string) *config.Config {
	cfg := config.Default()
	cfg.Role = config.RoleMaster
	cfg.SelfAddress = self
	cfg.Slaves = slaves
	cfg.Name = "master"
	cfg.MonitorInterval = time.Hour
	cfg.StaggerStep = time.Millisecond
	return cfg
}

func slaveConfig(self, parent string, peers ...string) *config.Config {
	cfg := config.Default()
	cfg.Role = config.RoleSlave
	cfg.SelfAddress = self
	cfg.ParentAddress = parent
	cfg.Slaves = peers
	cfg.MonitorInterval = time.Hour
	cfg.StaggerStep = time.Millisecond
	return cfg
}

// newTestController builds a controller wired to peers and a callback
// recorder. A nil clk selects the real clock.
func newTestController(t *testing.T, cfg *config.Config, peers PeerClient, clk clock.Clock) (*Controller, *recorder) {
	t.Helper()
	c, err := NewController(ControllerParams{
		Config: cfg,
		Peers:  peers,
		Clock:  clk,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	rec := &recorder{}
	rec.register(c)
	return c, rec
}
