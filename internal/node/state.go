package node

import (
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// Payload is the opaque application state exchanged between nodes. The
// controller stores and forwards it but never interprets it.
type Payload = map[string]any

// Snapshot is a consistent copy of State taken under a single lock.
type Snapshot struct {
	Status           Status
	OverrideDeadline time.Time
	Peers            []string
	LastUpdate       Payload
}

// State is the mutable record of the local node.
// Thread-safe: every accessor goes through the same RWMutex so a reader never
// observes a status from one update paired with peers from another.
type State struct {
	status           Status
	overrideDeadline time.Time
	peers            []string
	lastUpdate       Payload
	mu               sync.RWMutex
}

// NewState creates a waiting node with the given initial peer list.
func NewState(peers []string) *State {
	return &State{
		status: Waiting,
		peers:  append([]string(nil), peers...),
	}
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// StartRunning moves the node to Running. It returns false, leaving the state
// untouched, when the node is already running.
func (s *State) StartRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.IsRunning() {
		return false
	}
	s.status = Running
	return true
}

// StopRunning sets next as the new status and reports whether the node was
// running before the call.
func (s *State) StopRunning(next Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasRunning := s.status.IsRunning()
	s.status = next
	return wasRunning
}

// Peers returns a copy of the peer list in priority order.
func (s *State) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.peers...)
}

func (s *State) SetPeers(peers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = append([]string(nil), peers...)
}

// SetPeersIfEmpty installs peers only when no list is cached yet.
// Returns true if the list was installed.
func (s *State) SetPeersIfEmpty(peers []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) > 0 {
		return false
	}
	s.peers = append([]string(nil), peers...)
	return true
}

func (s *State) LastUpdate() Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.lastUpdate)
}

func (s *State) SetLastUpdate(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = maps.Clone(p)
}

// SetOverride puts the node into a custom status until deadline.
func (s *State) SetOverride(status Status, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.overrideDeadline = deadline
}

// ClearOverride drops the deadline. A custom status left by the override
// reverts to Waiting; a standard status is kept.
func (s *State) ClearOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideDeadline = time.Time{}
	if s.status.IsCustom() {
		s.status = Waiting
	}
}

// OverrideActive reports whether an override is set and has not yet expired.
func (s *State) OverrideActive(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.overrideDeadline.IsZero() && now.Before(s.overrideDeadline)
}

// OverrideExpired reports whether an override is set and its deadline passed.
func (s *State) OverrideExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.overrideDeadline.IsZero() && !now.Before(s.overrideDeadline)
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Status:           s.status,
		OverrideDeadline: s.overrideDeadline,
		Peers:            append([]string(nil), s.peers...),
		LastUpdate:       maps.Clone(s.lastUpdate),
	}
}
