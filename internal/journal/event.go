// Package journal records a tamper-evident history of suite runs.
//
// The journal is separate from technical logs:
//   - one JSON event per line, appended and synced before the run continues
//   - each event carries the hash of its predecessor, so editing, dropping
//     or reordering a line breaks the chain
//   - timestamps are UTC
//   - no key material or test inputs are ever written
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType is the kind of journal event.
type EventType string

const (
	EventRunStarted     EventType = "RUN_STARTED"
	EventVectorsLoaded  EventType = "VECTORS_LOADED"
	EventConfigRejected EventType = "CONFIG_REJECTED"
	EventRunAborted     EventType = "RUN_ABORTED"
	EventRunCompleted   EventType = "RUN_COMPLETED"
	EventReportSealed   EventType = "REPORT_SEALED"
)

// Result is the outcome of the journaled step.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor is who started the run.
type Actor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Host string `json:"host,omitempty"`
}

// Details describe the run the event belongs to.
type Details struct {
	RunID      string `json:"run_id,omitempty"`
	Seed       uint64 `json:"seed"`
	Status     string `json:"status,omitempty"`
	Backends   int    `json:"backends,omitempty"`
	Vectors    int    `json:"vectors,omitempty"`
	Cases      int    `json:"cases,omitempty"`
	Findings   int    `json:"findings,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ReportPath string `json:"report_path,omitempty"`
	KeyID      string `json:"key_id,omitempty"`
}

// Event is one journal line.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"`
	Actor     Actor     `json:"actor"`
	Details   Details   `json:"details"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"`
	Hash      string    `json:"hash"`
}

// NewEvent returns an event stamped with the current time and the local
// user as actor.
func NewEvent(eventType EventType, result Result, details Details) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor:     Actor{Type: "user", ID: username, Host: hostname},
		Details:   details,
		Result:    result,
	}
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return fmt.Errorf("actor type and id are required")
	}
	if e.Result == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}

// canonicalJSON is the event without its own hash, as hashed into the chain.
func (e *Event) canonicalJSON() ([]byte, error) {
	type eventForHash struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Details   Details   `json:"details"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}
	return json.Marshal(eventForHash{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Details:   e.Details,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}
