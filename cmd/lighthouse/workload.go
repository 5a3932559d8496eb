package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/coordinator"
	"github.com/dreamware/lighthouse/internal/storage"
)

// maxValueBytes bounds a single PUT body.
const maxValueBytes = cluster.MaxPayloadBytes

// kvOperations counts key-value requests served by the workload.
// Labels: op (get, put, delete, list)
var kvOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: cluster.MetricsNamespace,
	Subsystem: "workload",
	Name:      "kv_operations_total",
	Help:      "Total number of key-value operations served",
}, []string{"op"})

func init() {
	prometheus.MustRegister(kvOperations)
}

type broadcaster interface {
	Broadcast(ctx context.Context, payload cluster.Payload) error
}

// kvWorkload is the replicated key-value service the daemon runs while it is
// the active node. Writes are pushed to the other nodes as the whole store.
type kvWorkload struct {
	node   string
	store  storage.Store
	peers  broadcaster
	logger log.Logger

	// writeMu orders local writes with their broadcast so peers receive
	// snapshots in the order they were taken.
	writeMu sync.Mutex
}

func newKVWorkload(node string, store storage.Store, b broadcaster, logger log.Logger) *kvWorkload {
	return &kvWorkload{
		node:   node,
		store:  store,
		peers:  b,
		logger: log.With(logger, "component", "workload"),
	}
}

// register wires the workload into the controller's lifecycle hooks.
// unmount is called on every stop so a resting node never serves /app/.
func (k *kvWorkload) register(ctrl *coordinator.Controller, unmount func()) {
	ctrl.OnStart(k.start)
	ctrl.OnStop(func(_ context.Context, reason coordinator.StopReason) error {
		level.Info(k.logger).Log("op", "stop", "reason", reason, "msg", "workload stopped")
		unmount()
		return nil
	})
	ctrl.OnUpdate(k.update)
}

func (k *kvWorkload) start(_ context.Context, t coordinator.Transport, port int) error {
	level.Info(k.logger).Log("op", "start", "port", port, "keys", k.store.Stats().Keys, "msg", "workload started")
	if t == nil {
		return nil
	}
	t.Mount(k.router(port))
	return nil
}

func (k *kvWorkload) update(_ context.Context, payload cluster.Payload) error {
	if err := k.store.Replace(payload); err != nil {
		return err
	}
	level.Debug(k.logger).Log("op", "update", "keys", len(payload), "msg", "state replaced")
	return nil
}

func (k *kvWorkload) router(port int) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Node  string             `json:"node"`
			Port  int                `json:"port"`
			Stats storage.StoreStats `json:"stats"`
		}{Node: k.node, Port: port, Stats: k.store.Stats()})
	}).Methods(http.MethodGet)
	r.HandleFunc("/kv", k.handleList).Methods(http.MethodGet)
	r.HandleFunc("/kv/{key}", k.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/kv/{key}", k.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/kv/{key}", k.handleDelete).Methods(http.MethodDelete)
	return r
}

func (k *kvWorkload) handleList(w http.ResponseWriter, _ *http.Request) {
	kvOperations.WithLabelValues("list").Inc()
	keys := k.store.List()
	writeJSON(w, http.StatusOK, struct {
		Keys  []string `json:"keys"`
		Count int      `json:"count"`
	}{Keys: keys, Count: len(keys)})
}

func (k *kvWorkload) handleGet(w http.ResponseWriter, r *http.Request) {
	kvOperations.WithLabelValues("get").Inc()
	value, err := k.store.Get(mux.Vars(r)["key"])
	if errors.Is(err, storage.ErrKeyNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(value)
}

func (k *kvWorkload) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxValueBytes {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}

	key := mux.Vars(r)["key"]
	k.write(w, r, "put", key, func() error { return k.store.Put(key, body) })
}

func (k *kvWorkload) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	k.write(w, r, "delete", key, func() error { return k.store.Delete(key) })
}

// write applies a mutation and publishes the resulting store. A failed
// broadcast is logged by the controller and does not fail the request.
func (k *kvWorkload) write(w http.ResponseWriter, r *http.Request, op, key string, mutate func() error) {
	kvOperations.WithLabelValues(op).Inc()
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if err := mutate(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrInvalidValue) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	snap, err := k.store.Snapshot()
	if err != nil {
		level.Error(k.logger).Log("op", op, "key", key, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := k.peers.Broadcast(context.WithoutCancel(r.Context()), snap); err != nil {
		level.Warn(k.logger).Log("op", op, "key", key, "msg", "broadcast failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
