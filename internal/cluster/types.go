package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/dreamware/lighthouse/internal/node"
)

// Control surface paths shared by the HTTP binding and the peer client.
const (
	PathStatus          = "/status"
	PathAllStatuses     = "/status/all"
	PathTemporaryStatus = "/status/temporary"
	PathReset           = "/reset"
	PathStop            = "/stop"
	PathUpdate          = "/update"
	PathSync            = "/sync"
	PathBroadcast       = "/broadcast"
	PathHealth          = "/health"
	PathApp             = "/app/"
)

// Notification actions sent to peers.
const (
	ActionReset = "reset"
	ActionStop  = "stop"
)

// MaxPayloadBytes bounds every request body accepted by a node.
const MaxPayloadBytes = 1 << 20

// StatusCrashed is reported in aggregate views for peers that did not answer.
const StatusCrashed = "crashed"

// Payload is the opaque synchronization payload.
type Payload = node.Payload

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Slaves []string `json:"slaves"`
}

// NodeStatus is one row of GET /status/all.
type NodeStatus struct {
	Name   string `json:"name"`
	IP     string `json:"ip"`
	Status string `json:"status"`
}

// SyncResponse is the body of GET /sync. LastUpdate is null when the node has
// never accepted a payload.
type SyncResponse struct {
	LastUpdate Payload `json:"last_update"`
}

// TemporaryStatusRequest is the body of POST /status/temporary.
// Duration is expressed in seconds.
type TemporaryStatusRequest struct {
	Message  string  `json:"message"`
	Duration float64 `json:"duration"`
}

// BaseURL turns a host:port peer address into an http URL. Addresses that
// already carry a scheme are returned unchanged.
func BaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	return "http://" + addr
}

// GetJSON issues a GET and decodes the JSON body into out.
func GetJSON(ctx context.Context, client *resty.Client, url string, out any) error {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode())
	}
	return json.Unmarshal(resp.Body(), out)
}

// PostJSON issues a POST with body encoded as JSON. A nil body sends no
// payload. When out is non-nil the response is decoded into it.
func PostJSON(ctx context.Context, client *resty.Client, url string, body any, out any) error {
	req := client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}
