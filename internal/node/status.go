// Package node holds the synchronized runtime record of the local node:
// its status, temporary override, peer list and last synchronization payload.
package node

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes the standard statuses from an operator supplied message.
type Kind int

const (
	KindWaiting Kind = iota
	KindRunning
	KindCustom
)

const (
	waitingText = "waiting"
	runningText = "running"
)

// Status is either one of the standard states or a custom message set by a
// temporary override. On the wire it is always a plain string.
type Status struct {
	kind    Kind
	message string
}

var (
	Waiting = Status{kind: KindWaiting}
	Running = Status{kind: KindRunning}
)

// Custom returns a status carrying an arbitrary message. Messages that spell
// a standard state are normalized to it.
func Custom(message string) Status {
	return ParseStatus(message)
}

// ParseStatus maps a wire string to a Status.
func ParseStatus(s string) Status {
	switch s {
	case waitingText:
		return Waiting
	case runningText:
		return Running
	default:
		return Status{kind: KindCustom, message: s}
	}
}

func (s Status) Kind() Kind { return s.kind }

func (s Status) IsRunning() bool { return s.kind == KindRunning }

func (s Status) IsCustom() bool { return s.kind == KindCustom }

// Healthy reports whether peers should consider a node in this status alive.
func (s Status) Healthy() bool {
	return s.kind == KindRunning || s.kind == KindWaiting
}

func (s Status) String() string {
	switch s.kind {
	case KindWaiting:
		return waitingText
	case KindRunning:
		return runningText
	default:
		return s.message
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}
