// Package timings implements the append-only event trace mentioned in the
// design notes: a record of nanosecond timestamps at the key suspension
// boundaries a client crosses, kept purely for observability. Nothing in
// this repository reads its own timings back to make a decision.
package timings

import (
	"sync"
	"time"
)

type EventKind string

const (
	PlugControllerRequestStart EventKind = "plug_controller_request"
	PlugControllerResponse     EventKind = "plug_controller_response"
	ClientReadyWriteStart      EventKind = "client_ready_write_start"
	ClientReadyWriteEnd        EventKind = "client_ready_write_end"
	StartGameReadStart         EventKind = "start_game_read_start"
	StartGameReadEnd           EventKind = "start_game_read_end"
	KeyStateReadStart          EventKind = "key_state_read_start"
	KeyStateReadEnd            EventKind = "key_state_read_end"
	LocalGetStart              EventKind = "local_get_start"
	LocalGetEnd                EventKind = "local_get_end"
	RemoteGetStart             EventKind = "remote_get_start"
	RemoteGetEnd               EventKind = "remote_get_end"
)

type Event struct {
	Kind      EventKind
	Nanos     int64
}

// Recorder is an append-only, concurrency-safe list of timestamped events.
// A client allocates one per event-stream handler and passes it in at
// construction.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func New() *Recorder {
	return &Recorder{}
}

// Record appends kind with the current time. It never blocks on anything
// but its own mutex.
func (r *Recorder) Record(kind EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Nanos: time.Now().UnixNano()})
}

// Events returns a copy of the events recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
