package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/config"
)

// TestServeMaster verifies a master node serves its control surface, its
// workload and metrics, and shuts down when the context ends.
func TestServeMaster(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	cfg := config.Default()
	cfg.Role = config.RoleMaster
	cfg.SelfAddress = addr
	cfg.Name = "primary"
	cfg.PassTransport = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, ln, log.NewNopLogger()) }()

	base := "http://" + addr
	var status cluster.StatusResponse
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + cluster.PathStatus)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&status) == nil && status.Status == "running"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "primary", status.Name)

	resp, err := http.Get(base + "/app/")
	require.NoError(t, err)
	var workload struct {
		Node string `json:"node"`
		Port int    `json:"port"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workload))
	resp.Body.Close()
	assert.Equal(t, addr, workload.Node)
	assert.Equal(t, cfg.Port(), workload.Port)

	req, err := http.NewRequest(http.MethodPut, base+"/app/kv/color", strings.NewReader(`"blue"`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var syncResp cluster.SyncResponse
	resp, err = http.Get(base + cluster.PathSync)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&syncResp))
	resp.Body.Close()
	assert.Equal(t, cluster.Payload{"color": "blue"}, syncResp.LastUpdate)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

// TestRunNodeBadConfig verifies the daemon refuses to start without a usable
// configuration.
func TestRunNodeBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lighthouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: slave\nself_address: 127.0.0.1:8000\n"), 0o600))

	var stderr bytes.Buffer
	err := runNode(context.Background(), runOptions{configPath: path, logFormat: "logfmt", logLevel: "info"}, &stderr)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, stderr.String(), "loadConfig")

	err = runNode(context.Background(), runOptions{configPath: filepath.Join(dir, "missing.yaml")}, &stderr)
	assert.Error(t, err)

	err = runNode(context.Background(), runOptions{configPath: path, logFormat: "xml"}, &stderr)
	assert.Error(t, err)
}
