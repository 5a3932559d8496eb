// Package transport binds the controller's control surface to HTTP.
//
// Every route mirrors one control operation; peers speak to each other
// through the same routes. Operations that change node state run on a
// context detached from the request, so a peer giving up on a reset does
// not abort the re-initialization halfway.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/coordinator"
)

// Control is the set of controller operations exposed over HTTP.
type Control interface {
	GetStatus() cluster.StatusResponse
	GetAllStatuses(ctx context.Context) []cluster.NodeStatus
	Reset(ctx context.Context)
	Stop(ctx context.Context)
	ReceiveUpdate(ctx context.Context, payload cluster.Payload) error
	ProvideSync() cluster.SyncResponse
	SetTemporaryStatus(ctx context.Context, message string, d time.Duration) error
	Broadcast(ctx context.Context, payload cluster.Payload) error
}

var _ Control = (*coordinator.Controller)(nil)

// AppMount serves the host's own handler under /app/. It is the transport
// handle given to the start callback. The mounted handler sees paths with
// the /app prefix removed; with nothing mounted every request gets 404.
type AppMount struct {
	handler atomic.Pointer[http.Handler]
}

var _ coordinator.Transport = (*AppMount)(nil)

func NewAppMount() *AppMount {
	return &AppMount{}
}

// Mount replaces the served handler. A nil handler unmounts.
func (m *AppMount) Mount(h http.Handler) {
	if h == nil {
		m.Unmount()
		return
	}
	h = http.StripPrefix(strings.TrimSuffix(cluster.PathApp, "/"), h)
	m.handler.Store(&h)
}

func (m *AppMount) Unmount() {
	m.handler.Store(nil)
}

func (m *AppMount) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := m.handler.Load()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	(*h).ServeHTTP(w, r)
}

type server struct {
	ctrl   Control
	logger log.Logger
}

// NewRouter registers every control route on a new router. app may be nil
// when the host never serves its own routes.
func NewRouter(ctrl Control, app *AppMount, logger log.Logger) *mux.Router {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &server{ctrl: ctrl, logger: log.With(logger, "component", "transport")}

	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc(cluster.PathStatus, s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc(cluster.PathAllStatuses, s.handleAllStatuses).Methods(http.MethodGet)
	router.HandleFunc(cluster.PathTemporaryStatus, s.handleTemporaryStatus).Methods(http.MethodPost)
	router.HandleFunc(cluster.PathReset, s.handleReset).Methods(http.MethodPost)
	router.HandleFunc(cluster.PathStop, s.handleStop).Methods(http.MethodPost)
	router.HandleFunc(cluster.PathUpdate, s.handleUpdate).Methods(http.MethodPost)
	router.HandleFunc(cluster.PathSync, s.handleSync).Methods(http.MethodGet)
	router.HandleFunc(cluster.PathBroadcast, s.handleBroadcast).Methods(http.MethodPost)
	router.HandleFunc(cluster.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	if app != nil {
		router.PathPrefix(cluster.PathApp).Handler(app)
	}
	return router
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level.Debug(s.logger).Log("op", "request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.GetStatus())
}

func (s *server) handleAllStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.GetAllStatuses(r.Context()))
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop(context.WithoutCancel(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload cluster.Payload
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := s.ctrl.ReceiveUpdate(context.WithoutCancel(r.Context()), payload); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ctrl.ProvideSync())
}

func (s *server) handleTemporaryStatus(w http.ResponseWriter, r *http.Request) {
	var req cluster.TemporaryStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := secondsToDuration(req.Duration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ctrl.SetTemporaryStatus(context.WithoutCancel(r.Context()), req.Message, d); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var payload cluster.Payload
	if !decodeBody(w, r, &payload) {
		return
	}
	if err := s.ctrl.Broadcast(context.WithoutCancel(r.Context()), payload); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps controller errors to status codes. Validation failures are
// the caller's fault; anything else is ours.
func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrInvalidStatus),
		errors.Is(err, coordinator.ErrInvalidPayload),
		errors.Is(err, coordinator.ErrInvalidDuration):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, coordinator.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		level.Error(s.logger).Log("op", "request", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// decodeBody reads at most cluster.MaxPayloadBytes of JSON into v. On
// failure it writes 413 or 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, cluster.MaxPayloadBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	http.Error(w, "bad json", http.StatusBadRequest)
	return false
}

// maxDurationSeconds is the largest duration, in seconds, a time.Duration holds.
const maxDurationSeconds = float64(math.MaxInt64 / int64(time.Second))

// secondsToDuration converts a wire duration in seconds. Zero is kept so the
// controller applies its default.
func secondsToDuration(sec float64) (time.Duration, error) {
	if math.IsNaN(sec) || sec < 0 || sec > maxDurationSeconds {
		return 0, fmt.Errorf("%w: %v seconds", coordinator.ErrInvalidDuration, sec)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
