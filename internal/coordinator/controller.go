package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/config"
	"github.com/dreamware/lighthouse/internal/node"
)

var (
	// ErrInvalidStatus is returned when a temporary status message is empty
	// or spells one of the standard states.
	ErrInvalidStatus = errors.New("invalid temporary status")

	// ErrInvalidPayload is returned for a missing synchronization payload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidDuration is returned for a negative or unrepresentable
	// temporary status duration.
	ErrInvalidDuration = errors.New("invalid temporary status duration")

	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = errors.New("controller closed")
)

// PeerClient is the subset of cluster.PeerClient the controller needs.
type PeerClient interface {
	QueryStatus(ctx context.Context, addr string) cluster.StatusResult
	Notify(ctx context.Context, addr, action string) error
	FetchLastUpdate(ctx context.Context, addr string) cluster.SyncResult
	PushUpdate(ctx context.Context, addr string, payload cluster.Payload) error
}

// ControllerParams holds the dependencies of a Controller.
type ControllerParams struct {
	Config *config.Config

	// Optional: defaults to a cluster.PeerClient built from Config timings.
	Peers PeerClient

	// Optional: defaults to real clock.
	Clock clock.Clock

	// Optional: defaults to a no-op logger.
	Logger log.Logger

	// Handed to the start callback when Config.PassTransport is set.
	Transport Transport
}

// Snapshot is a consistent view of a controller for diagnostics.
type Snapshot struct {
	node.Snapshot
	Role          config.Role
	MonitorActive bool
}

// Controller drives one lighthouse node: it owns the node state, the health
// monitor and the host callbacks, and exposes the control surface operations.
// Thread-safe: control operations may run concurrently with the monitor loop.
type Controller struct {
	cfg       *config.Config
	state     *node.State
	peers     PeerClient
	clock     clock.Clock
	logger    log.Logger
	transport Transport
	monitor   *HealthMonitor
	callbacks callbacks

	ctx    context.Context // Parent of the monitor loop, cancelled by Close
	cancel context.CancelFunc

	// lifecycleMu serializes transitions into and out of running so the
	// start callback is never invoked twice without a stop in between.
	lifecycleMu sync.Mutex
	closed      bool // Set by Close; guarded by lifecycleMu
}

// NewController builds a controller in the waiting state. Nothing runs until
// Start is called.
func NewController(p ControllerParams) (*Controller, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "node", p.Config.SelfAddress, "role", p.Config.Role)

	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	peers := p.Peers
	if peers == nil {
		peers = cluster.NewPeerClient(p.Config.PeerTimeout, p.Config.CacheTTL, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:       p.Config,
		state:     node.NewState(p.Config.Slaves),
		peers:     peers,
		clock:     clk,
		logger:    log.With(logger, "component", "Controller"),
		transport: p.Transport,
		callbacks: callbacks{logger: logger},
		ctx:       ctx,
		cancel:    cancel,
	}
	c.monitor = NewHealthMonitor(p.Config.MonitorInterval, clk, logger, c.checkHealth)
	RecordRunning(false)
	return c, nil
}

// Start runs the initialization path for the node's role: a master pulls
// state from its peers and starts the workload, a slave arms the monitor.
func (c *Controller) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return
	}

	level.Info(c.logger).Log("op", "start", "peers", fmt.Sprint(c.state.Peers()), "msg", "starting controller")
	c.initialize(ctx)
}

// Close stops the monitor and the workload. The controller cannot be
// restarted afterwards: Start, Reset and promotion become no-ops and
// SetTemporaryStatus fails with ErrClosed.
func (c *Controller) Close() {
	c.cancel()
	c.monitor.Stop()

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.closed = true
	c.stopWorkload(context.Background(), StopReasonStop, node.Waiting)
	level.Info(c.logger).Log("op", "close", "msg", "controller closed")
}

// GetStatus reports this node's name, status and known peers.
func (c *Controller) GetStatus() cluster.StatusResponse {
	snap := c.state.Snapshot()
	slaves := snap.Peers
	if slaves == nil {
		slaves = []string{}
	}
	return cluster.StatusResponse{
		Name:   c.cfg.Name,
		Status: snap.Status.String(),
		Slaves: slaves,
	}
}

// GetAllStatuses reports this node first, then every other known node in
// priority order. Each address appears once; nodes that do not answer are
// reported as crashed.
func (c *Controller) GetAllStatuses(ctx context.Context) []cluster.NodeStatus {
	targets := c.targets()
	out := make([]cluster.NodeStatus, len(targets)+1)
	out[0] = cluster.NodeStatus{
		Name:   c.cfg.Name,
		IP:     c.cfg.SelfAddress,
		Status: c.state.Status().String(),
	}

	var wg sync.WaitGroup
	for i, addr := range targets {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			res := c.peers.QueryStatus(ctx, addr)
			row := cluster.NodeStatus{IP: addr, Status: cluster.StatusCrashed}
			if res.OK() {
				row.Name = res.Response.Name
				row.Status = res.Response.Status
			}
			out[i+1] = row
		}(i, addr)
	}
	wg.Wait()
	return out
}

// Reset stops the workload with reason reset and re-runs initialization.
// While a temporary status is in force it only stops; the node rejoins when
// the override expires. Calling Reset repeatedly converges on the same state.
func (c *Controller) Reset(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		level.Debug(c.logger).Log("op", "reset", "msg", "controller closed, ignoring")
		return
	}

	now := c.clock.Now()
	if c.state.OverrideExpired(now) {
		c.state.ClearOverride()
	}

	c.stopWorkload(ctx, StopReasonReset, c.restingStatus())
	if c.state.OverrideActive(now) {
		level.Info(c.logger).Log("op", "reset", "msg", "temporary status in force, not reinitializing")
		return
	}
	c.initialize(ctx)
}

// Stop stops the workload with reason stop. The node stays waiting, or keeps
// its temporary status if one is in force.
func (c *Controller) Stop(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.stopWorkload(ctx, StopReasonStop, c.restingStatus())
}

// SetTemporaryStatus disables the node under a custom status message for d,
// or for the configured default when d is zero. A negative d is rejected. The workload is
// stopped and the node re-initializes by itself once the deadline passes.
func (c *Controller) SetTemporaryStatus(ctx context.Context, message string, d time.Duration) error {
	status := node.Custom(message)
	if message == "" || !status.IsCustom() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, message)
	}
	if d < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	if d == 0 {
		d = c.cfg.OverrideDuration
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.stopWorkload(ctx, StopReasonStop, status)
	deadline := c.clock.Now().Add(d)
	c.state.SetOverride(status, deadline)

	// Both roles need the loop to notice the deadline.
	c.monitor.Start(c.ctx)

	level.Info(c.logger).Log("op", "setTemporaryStatus", "status", message, "until", deadline.UTC().Format(time.RFC3339), "msg", "temporary status set")
	return nil
}

// ReceiveUpdate accepts a payload pushed by a peer.
func (c *Controller) ReceiveUpdate(ctx context.Context, payload cluster.Payload) error {
	return c.ApplyIncoming(ctx, payload)
}

// ProvideSync returns the body of a synchronization request.
func (c *Controller) ProvideSync() cluster.SyncResponse {
	return cluster.SyncResponse{LastUpdate: c.ProvideSnapshot()}
}

func (c *Controller) Status() node.Status {
	return c.state.Status()
}

// Snapshot returns a consistent copy of the node state together with the
// monitor liveness.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Snapshot:      c.state.Snapshot(),
		Role:          c.cfg.Role,
		MonitorActive: c.monitor.Active(),
	}
}

// initialize runs the startup path for the configured role.
// Caller must hold lifecycleMu.
func (c *Controller) initialize(ctx context.Context) {
	switch c.cfg.Role {
	case config.RoleMaster:
		c.initializeAsMaster(ctx)
	case config.RoleSlave:
		c.initializeAsSlave()
	}
}

// restingStatus is the status a stopped node falls back to: its custom
// status while one is set, waiting otherwise.
func (c *Controller) restingStatus() node.Status {
	if st := c.state.Status(); st.IsCustom() {
		return st
	}
	return node.Waiting
}

// startWorkload moves the node to running and invokes the start callback.
// It returns false when the node was already running.
// Caller must hold lifecycleMu.
func (c *Controller) startWorkload(ctx context.Context) bool {
	if !c.state.StartRunning() {
		return false
	}
	RecordRunning(true)

	var transport Transport
	if c.cfg.PassTransport {
		transport = c.transport
	}
	c.callbacks.start(ctx, transport, c.cfg.Port())
	return true
}

// stopWorkload sets next as the status and invokes the stop callback if the
// node was running. Caller must hold lifecycleMu.
func (c *Controller) stopWorkload(ctx context.Context, reason StopReason, next node.Status) {
	if !c.state.StopRunning(next) {
		return
	}
	RecordRunning(false)
	level.Info(c.logger).Log("op", "stop", "reason", reason, "msg", "workload stopped")
	c.callbacks.stop(ctx, reason)
}
