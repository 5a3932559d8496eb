package cluster

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Outcome classifies the result of a peer call. Callers branch on it instead
// of inspecting errors.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnreachable
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unreachable"
	}
}

// StatusResult is the outcome of a status query. Response is only meaningful
// when Outcome is OutcomeOK.
type StatusResult struct {
	Outcome  Outcome
	Response StatusResponse
	Err      error
}

func (r StatusResult) OK() bool { return r.Outcome == OutcomeOK }

// Healthy reports whether the peer answered with "running" or "waiting".
func (r StatusResult) Healthy() bool {
	return r.OK() && (r.Response.Status == "running" || r.Response.Status == "waiting")
}

// Running reports whether the peer answered with "running".
func (r StatusResult) Running() bool {
	return r.OK() && r.Response.Status == "running"
}

// SyncResult is the outcome of fetching a peer's last update.
type SyncResult struct {
	Outcome Outcome
	Payload Payload
	Err     error
}

func (r SyncResult) OK() bool { return r.Outcome == OutcomeOK }

// statusCacheSize bounds the number of peers remembered by the status cache.
const statusCacheSize = 128

// PeerClient talks to other lighthouse nodes over HTTP.
// Every call is bounded by the configured timeout and is never retried.
// Thread-safe: resty clients and the expirable cache are safe for concurrent use.
type PeerClient struct {
	http    *resty.Client
	cache   *expirable.LRU[string, StatusResult] // nil when caching is disabled
	timeout time.Duration
	logger  log.Logger
}

// NewPeerClient creates a client whose calls time out after timeout.
// A positive cacheTTL memoizes status query results per address for that window.
//
// Example:
//
//	peers := cluster.NewPeerClient(2*time.Second, 0, logger)
//	res := peers.QueryStatus(ctx, "10.0.0.1:8000")
//	if !res.Healthy() {
//	    // parent is down
//	}
func NewPeerClient(timeout, cacheTTL time.Duration, logger log.Logger) *PeerClient {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &PeerClient{
		http: resty.New().
			SetTimeout(timeout).
			SetHeaders(map[string]string{
				"Content-Type": "application/json",
				"Accept":       "application/json",
			}).
			SetRetryCount(0),
		timeout: timeout,
		logger:  log.With(logger, "component", "PeerClient"),
	}
	if cacheTTL > 0 {
		c.cache = expirable.NewLRU[string, StatusResult](statusCacheSize, nil, cacheTTL)
	}
	return c
}

// QueryStatus fetches a peer's status. Any failure, including a response that
// does not carry a status field, is folded into the returned Outcome.
func (c *PeerClient) QueryStatus(ctx context.Context, addr string) StatusResult {
	if c.cache != nil {
		if res, ok := c.cache.Get(addr); ok {
			statusCacheHits.Inc()
			return res
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var res StatusResult
	err := GetJSON(ctx, c.http, BaseURL(addr)+PathStatus, &res.Response)
	if err == nil && res.Response.Status == "" {
		err = errMissingStatus
	}
	res.Outcome = classify(err)
	res.Err = err
	if err != nil {
		res.Response = StatusResponse{}
		level.Warn(c.logger).Log("op", "queryStatus", "peer", addr, "outcome", res.Outcome, "error", err)
	}
	recordRequest("status", res.Outcome)

	if c.cache != nil {
		c.cache.Add(addr, res)
	}
	return res
}

// Notify sends a bodiless POST /<action> to a peer.
func (c *PeerClient) Notify(ctx context.Context, addr, action string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := PostJSON(ctx, c.http, BaseURL(addr)+"/"+action, nil, nil)
	recordRequest("notify", classify(err))
	return err
}

// FetchLastUpdate retrieves a peer's last synchronization payload.
func (c *PeerClient) FetchLastUpdate(ctx context.Context, addr string) SyncResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body SyncResponse
	err := GetJSON(ctx, c.http, BaseURL(addr)+PathSync, &body)
	res := SyncResult{Outcome: classify(err), Err: err}
	if err == nil {
		res.Payload = body.LastUpdate
	} else {
		level.Warn(c.logger).Log("op", "fetchLastUpdate", "peer", addr, "outcome", res.Outcome, "error", err)
	}
	recordRequest("sync", res.Outcome)
	return res
}

// PushUpdate sends a payload to a peer's update endpoint.
func (c *PeerClient) PushUpdate(ctx context.Context, addr string, payload Payload) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if payload == nil {
		payload = Payload{}
	}
	err := PostJSON(ctx, c.http, BaseURL(addr)+PathUpdate, payload, nil)
	recordRequest("push", classify(err))
	return err
}

var errMissingStatus = errors.New("response has no status field")

func classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeUnreachable
}
