package transport

import (
	"sync"

	"github.com/openlockstep/netsync/internal/muxado"
	"github.com/openlockstep/netsync/wire"
)

// EventStream is the single long-lived bidirectional stream carried for a
// client's entire participation in a console: ClientReady, keypress
// batches, and the server's StartGame/StopConsole/keypress replies. Writes
// are serialized with a mutex so that concurrent PutButtons-driven sends
// and control-message sends (e.g. an InvalidData reply) don't interleave
// their wire encodings; reads are expected to come from a single loop, as
// muxado streams support one reader and one writer concurrently but not
// concurrent writers or concurrent readers.
type EventStream struct {
	stream muxado.TypedStream

	writeMu sync.Mutex
}

func newEventStream(stream muxado.TypedStream) *EventStream {
	return &EventStream{stream: stream}
}

// SendOutgoing is the client-side write: forward a ClientReady or keypress
// batch to the server.
func (e *EventStream) SendOutgoing(ev *wire.OutgoingEvent) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return wire.WriteMessage(e.stream, ev)
}

// RecvIncoming is the client-side read: the next StartGame, StopConsole, or
// keypress batch from the server.
func (e *EventStream) RecvIncoming() (*wire.IncomingEvent, error) {
	var ev wire.IncomingEvent
	if err := wire.ReadMessage(e.stream, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// SendIncoming is the server-side write: forward StartGame, StopConsole, a
// keypress batch, or an InvalidData complaint to one client.
func (e *EventStream) SendIncoming(ev *wire.IncomingEvent) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return wire.WriteMessage(e.stream, ev)
}

// RecvOutgoing is the server-side read: the next ClientReady or keypress
// batch from a client.
func (e *EventStream) RecvOutgoing() (*wire.OutgoingEvent, error) {
	var ev wire.OutgoingEvent
	if err := wire.ReadMessage(e.stream, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Cancel is a best-effort abrupt termination of the stream; it carries no
// delivery guarantee for anything in flight.
func (e *EventStream) Cancel() error {
	return e.stream.Close()
}

// Close ends the stream cleanly.
func (e *EventStream) Close() error {
	return e.stream.Close()
}
