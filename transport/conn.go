// Package transport provides the default concrete implementation of the
// "bidirectional streaming RPC with ordered delivery and cancellation"
// contract that the design treats as an external collaborator. It
// multiplexes the handful of unary RPCs and the one long-lived event stream
// a client keeps open for the console's lifetime over a single underlying
// io.ReadWriteCloser (typically a TCP connection), using this repository's
// muxado fork for the actual framing and package wire's protobuf-based
// message codec for the RPC payloads themselves.
package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/openlockstep/netsync/internal/muxado"
	"github.com/openlockstep/netsync/wire"
)

// unaryCallTimeout bounds every unary RPC issued through Call: the caller
// gets control back within this long even if the remote side never
// replies.
const unaryCallTimeout = 5 * time.Second

// Conn is one multiplexed session between a client and the server. A client
// opens one Conn per TCP connection and uses it both for unary RPCs and for
// the persistent event stream; the server accepts streams off its own Conn
// and dispatches them by the ReqType they were opened with.
type Conn struct {
	mux     *muxado.Heartbeat
	latency chan time.Duration
}

// Dial wraps transport (already connected) as a client-side Conn.
func Dial(transport io.ReadWriteCloser) *Conn {
	return newConn(transport, true)
}

// Accept wraps transport (already accepted) as a server-side Conn.
func Accept(transport io.ReadWriteCloser) *Conn {
	return newConn(transport, false)
}

func newConn(transport io.ReadWriteCloser, isClient bool) *Conn {
	var sess muxado.Session
	if isClient {
		sess = muxado.Client(transport, nil)
	} else {
		sess = muxado.Server(transport, nil)
	}
	typed := muxado.NewTypedStreamSession(sess)
	c := &Conn{latency: make(chan time.Duration, 1)}
	heart := muxado.NewHeartbeat(typed, c.onHeartbeat, nil)
	c.mux = heart
	heart.Start()
	if isClient {
		// The server's heartbeat opens a stream toward the client, and
		// Heartbeat answers it only from inside AcceptTypedStream; nothing
		// else accepts streams on a client Conn, so this loop does.
		go func() {
			for {
				ts, err := heart.AcceptTypedStream()
				if err != nil {
					return
				}
				_ = ts.Close()
			}
		}()
	}
	return c
}

// onHeartbeat is invoked by the muxado heartbeat goroutine. A zero duration
// means the remote failed to answer in time, which this transport treats as
// a fatal condition for the underlying connection: any stream already open
// over it will start failing its reads and writes, which is exactly the
// "transport failure" the design says is fatal to a session.
func (c *Conn) onHeartbeat(d time.Duration) {
	if d == 0 {
		c.mux.Close()
		return
	}
	select {
	case <-c.latency:
	default:
	}
	select {
	case c.latency <- d:
	default:
	}
}

// Latency reports the most recently measured heartbeat round-trip time.
func (c *Conn) Latency() <-chan time.Duration {
	return c.latency
}

// Heartbeat sends a keepalive and reports the measured round-trip latency.
// A zero duration indicates the remote failed to reply.
func (c *Conn) Heartbeat() time.Duration {
	return c.mux.Beat()
}

// Close tears down the underlying transport and all streams multiplexed
// over it.
func (c *Conn) Close() error {
	return c.mux.Close()
}

// Call issues a unary RPC of the given type: it opens a fresh stream tagged
// reqType, writes req, reads back resp, and closes the stream. The whole
// round trip is bounded by unaryCallTimeout, so a server that never
// replies cannot wedge the caller forever. This is the client side of
// every RPC in wire.ReqType except SendEventReq.
func (c *Conn) Call(reqType wire.ReqType, req, resp any) error {
	stream, err := c.mux.OpenTypedStream(muxado.StreamType(reqType))
	if err != nil {
		return fmt.Errorf("transport: open stream for %v: %w", reqType, err)
	}
	defer stream.Close()

	if err := stream.SetDeadline(time.Now().Add(unaryCallTimeout)); err != nil {
		return fmt.Errorf("transport: set deadline: %w", err)
	}

	if err := wire.WriteMessage(stream, req); err != nil {
		return fmt.Errorf("transport: write request: %w", err)
	}
	if err := wire.ReadMessage(stream, resp); err != nil {
		return fmt.Errorf("transport: read response: %w", err)
	}
	return nil
}

// OpenEventStream opens the client's single long-lived bidirectional
// stream, used for ClientReady/StartGame/StopConsole/keypress traffic for
// as long as the console runs.
func (c *Conn) OpenEventStream() (*EventStream, error) {
	stream, err := c.mux.OpenTypedStream(muxado.StreamType(wire.SendEventReq))
	if err != nil {
		return nil, fmt.Errorf("transport: open event stream: %w", err)
	}
	return newEventStream(stream), nil
}

// Incoming is one stream the remote side opened against us, still tagged
// with the ReqType it was opened with. The server's dispatch loop uses this
// to route unary calls to their handler and the event-stream ReqType to the
// console coordinator.
type Incoming struct {
	Type   wire.ReqType
	stream muxado.TypedStream
}

// Accept blocks until the remote side opens a new stream and returns it.
// It is for server-side Conns: a client-side Conn accepts and closes
// remote-opened streams itself.
func (c *Conn) Accept() (*Incoming, error) {
	ts, err := c.mux.AcceptTypedStream()
	if err != nil {
		return nil, err
	}
	return &Incoming{Type: wire.ReqType(ts.StreamType()), stream: ts}, nil
}

// DecodeRequest reads and decodes the single request message a unary
// caller sent.
func (in *Incoming) DecodeRequest(req any) error {
	return wire.ReadMessage(in.stream, req)
}

// Respond writes resp and closes the stream, completing a unary call.
func (in *Incoming) Respond(resp any) error {
	defer in.stream.Close()
	return wire.WriteMessage(in.stream, resp)
}

// AsEventStream adopts this incoming stream as the server's end of a
// client's persistent event stream. Call this only when Type ==
// wire.SendEventReq.
func (in *Incoming) AsEventStream() *EventStream {
	return newEventStream(in.stream)
}
