// Package streamhandler implements the client side of one bidirectional
// event stream: it multiplexes writes from PutButtons, demultiplexes reads
// from the server into per-port frame queues, and lets an emulator thread
// block on GetButtons until the authoritative input for a port/frame
// arrives. It is grounded on the same "one handler drives one stream"
// shape this repository's muxado-based session client used, generalized
// from tunnel bind/unbind bookkeeping to port/frame bookkeeping.
package streamhandler

import (
	"fmt"
	"sync"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/openlockstep/netsync/codec"
	"github.com/openlockstep/netsync/internal/log"
	"github.com/openlockstep/netsync/port"
	"github.com/openlockstep/netsync/queue"
	"github.com/openlockstep/netsync/timings"
	"github.com/openlockstep/netsync/transport"
	"github.com/openlockstep/netsync/wire"
)

// remoteGetRetryTimeout bounds how long GetButtons waits for a remote
// port's frame after ReadUntilButtons has observed it arrive, per the
// design's five-second defensive retry.
const remoteGetRetryTimeout = 5 * time.Second

type Status int32

const (
	NotYetStarted Status = iota
	Running
	Terminated
)

func (s Status) String() string {
	switch s {
	case NotYetStarted:
		return "NOT_YET_STARTED"
	case Running:
		return "RUNNING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

type PutStatus int

const (
	PutSuccess PutStatus = iota
	PutNoSuchPort
	PutRejectedByQueue
	PutFailedToEncode
	PutFailedToTransmitRemote
	PutInternalError
)

type GetStatus int

const (
	GetSuccess GetStatus = iota
	GetNoSuchPort
	GetFailure
)

// ButtonsFrame is one element of a PutButtons batch: the port it targets,
// the (undelayed, for local ports) frame number, and the opaque controller
// state for that frame.
type ButtonsFrame[B any] struct {
	Port    port.Port
	Frame   int
	Buttons B
}

// Handler wraps one bidirectional event stream on behalf of one client. A
// single Handler is meant to be driven by one emulator thread: PutButtons,
// GetButtons for local ports, and GetButtons for remote ports (which may
// itself trigger a blocking read loop) are all expected to be the only
// concurrent users of the stream's read and write halves respectively.
type Handler[B any] struct {
	consoleID int64
	clientID  int64
	localPort map[port.Port]bool
	codec     codec.Buttons[B]
	conn      *transport.Conn
	rec       *timings.Recorder
	logger    log.Logger

	stream *transport.EventStream

	queues map[port.Port]*queue.Queue[B]
	delay  map[port.Port]int32

	statusMu sync.Mutex
	status   Status
}

// New constructs a handler for console/client IDs that must already be
// allocated (e.g. via a successful top-level PlugControllers call), bound
// to localPorts -- the ports this process itself produces input for.
// Construction preconditions are programmer errors: a non-positive ID, an
// empty or over-long local_ports, a duplicate, or PORT_ANY among them all
// panic rather than return an error.
func New[B any](consoleID, clientID int64, localPorts []port.Port, c codec.Buttons[B], conn *transport.Conn, rec *timings.Recorder, logger log.Logger) *Handler[B] {
	if consoleID <= 0 {
		panic(fmt.Sprintf("streamhandler: console_id must be positive, got %d", consoleID))
	}
	if clientID <= 0 {
		panic(fmt.Sprintf("streamhandler: client_id must be positive, got %d", clientID))
	}
	if len(localPorts) < 1 || len(localPorts) > 4 {
		panic(fmt.Sprintf("streamhandler: local_ports must have 1..4 entries, got %d", len(localPorts)))
	}

	set := make(map[port.Port]bool, len(localPorts))
	for _, p := range localPorts {
		if p == port.Any {
			panic("streamhandler: local_ports must not contain PORT_ANY")
		}
		if set[p] {
			panic(fmt.Sprintf("streamhandler: local_ports contains duplicate port %v", p))
		}
		set[p] = true
	}

	if logger == nil {
		logger = log.NewLog15Logger(log15.New())
	}

	return &Handler[B]{
		consoleID: consoleID,
		clientID:  clientID,
		localPort: set,
		codec:     c,
		conn:      conn,
		rec:       rec,
		logger:    logger,
		status:    NotYetStarted,
	}
}

func (h *Handler[B]) Status() Status {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	return h.status
}

func (h *Handler[B]) setStatus(s Status) {
	h.statusMu.Lock()
	h.status = s
	h.statusMu.Unlock()
}

func (h *Handler[B]) record(kind timings.EventKind) {
	if h.rec != nil {
		h.rec.Record(kind)
	}
}

// ReadyAndWaitForConsoleStart opens the bidirectional stream, announces
// ClientReady, and blocks for the server's StartGame (or StopConsole). On
// success it builds one InputQueue per connected port -- local queues for
// this handler's own ports, remote queues for everyone else's -- and
// transitions to Running.
func (h *Handler[B]) ReadyAndWaitForConsoleStart() error {
	stream, err := h.conn.OpenEventStream()
	if err != nil {
		return fmt.Errorf("streamhandler: open event stream: %w", err)
	}
	h.stream = stream

	h.record(timings.ClientReadyWriteStart)
	err = stream.SendOutgoing(&wire.OutgoingEvent{
		ClientReady: &wire.ClientReady{ConsoleID: h.consoleID, ClientID: h.clientID},
	})
	h.record(timings.ClientReadyWriteEnd)
	if err != nil {
		return fmt.Errorf("streamhandler: write ClientReady: %w", err)
	}

	h.record(timings.StartGameReadStart)
	ev, err := stream.RecvIncoming()
	h.record(timings.StartGameReadEnd)
	if err != nil {
		return fmt.Errorf("streamhandler: read StartGame: %w", err)
	}

	if ev.Stop != nil {
		h.setStatus(Terminated)
		return fmt.Errorf("streamhandler: console stopped before start (reason %v)", ev.Stop.Reason)
	}
	if ev.StartGame == nil {
		return fmt.Errorf("streamhandler: expected StartGame, got %+v", ev)
	}
	if ev.StartGame.ConsoleID != h.consoleID {
		return fmt.Errorf("streamhandler: StartGame console_id %d does not match %d", ev.StartGame.ConsoleID, h.consoleID)
	}

	connected := ev.StartGame.ConnectedPorts
	if len(connected) > 4 {
		return fmt.Errorf("streamhandler: StartGame lists %d ports, max is 4", len(connected))
	}
	seen := make(map[port.Port]bool, len(connected))
	for _, cp := range connected {
		if cp.Port == port.Any {
			return fmt.Errorf("streamhandler: StartGame lists PORT_ANY")
		}
		if seen[cp.Port] {
			return fmt.Errorf("streamhandler: StartGame lists port %v twice", cp.Port)
		}
		seen[cp.Port] = true
	}
	for p := range h.localPort {
		if !seen[p] {
			return fmt.Errorf("streamhandler: StartGame is missing local port %v", p)
		}
	}

	queues := make(map[port.Port]*queue.Queue[B], len(connected))
	delay := make(map[port.Port]int32, len(connected))
	for _, cp := range connected {
		if h.localPort[cp.Port] {
			queues[cp.Port] = queue.NewLocal[B](int(cp.DelayFrames))
		} else {
			queues[cp.Port] = queue.NewRemote[B](int(cp.DelayFrames))
		}
		delay[cp.Port] = cp.DelayFrames
	}
	h.queues = queues
	h.delay = delay
	h.setStatus(Running)
	return nil
}

// PutButtons records each (port, frame, buttons) triple in its port's
// queue and, for every local port touched, encodes and ships one combined
// keypress batch to the server. Remote ports are recorded locally (so a
// consumer reading its own previously-broadcast input would see it) but
// never retransmitted -- remote input arrives over the wire, it doesn't
// originate here.
func (h *Handler[B]) PutButtons(batch []ButtonsFrame[B]) PutStatus {
	outgoing := make([]wire.KeyState, 0, len(batch))

	for _, bf := range batch {
		q, ok := h.queues[bf.Port]
		if !ok {
			return PutNoSuchPort
		}
		if err := q.Put(bf.Frame, bf.Buttons); err != nil {
			return PutRejectedByQueue
		}
		if !h.localPort[bf.Port] {
			continue
		}

		delay, ok := h.delay[bf.Port]
		if !ok {
			return PutInternalError
		}
		ks := wire.KeyState{
			ConsoleID:   h.consoleID,
			Port:        bf.Port,
			FrameNumber: int32(bf.Frame) + delay,
		}
		if err := h.codec.Encode(bf.Buttons, &ks); err != nil {
			return PutFailedToEncode
		}
		outgoing = append(outgoing, ks)
	}

	if len(outgoing) == 0 {
		return PutSuccess
	}
	if err := h.stream.SendOutgoing(&wire.OutgoingEvent{KeyPress: outgoing}); err != nil {
		return PutFailedToTransmitRemote
	}
	return PutSuccess
}

// GetButtons returns the authoritative input for port at frame, blocking as
// necessary. Local ports never block beyond what's already buffered; remote
// ports may trigger a read loop over the stream waiting for the server to
// forward that frame.
func (h *Handler[B]) GetButtons(p port.Port, frame int) (B, GetStatus) {
	var zero B

	q, ok := h.queues[p]
	if !ok {
		return zero, GetNoSuchPort
	}

	if h.localPort[p] {
		h.record(timings.LocalGetStart)
		defer h.record(timings.LocalGetEnd)
		v, status := q.Get(frame, queue.ReturnImmediately)
		if status != queue.Success {
			return zero, GetFailure
		}
		return v, GetSuccess
	}

	h.record(timings.RemoteGetStart)
	defer h.record(timings.RemoteGetEnd)

	v, status := q.Get(frame, queue.ReturnImmediately)
	if status == queue.Success {
		return v, GetSuccess
	}
	if status != queue.TimedOut {
		return zero, GetFailure
	}

	readStatus := h.readUntilButtons(p, frame)
	if readStatus != readGotButtons {
		return zero, GetFailure
	}

	v, status = q.Get(frame, queue.Timeout(remoteGetRetryTimeout/time.Microsecond))
	if status != queue.Success {
		h.logger.Log(nil, log.LogLevelError, "probable logic error: ReadUntilButtons observed the frame but Get still did not see it", map[string]interface{}{
			"port": p, "frame": frame, "status": status.String(),
		})
		return zero, GetFailure
	}
	return v, GetSuccess
}

type readStatus int

const (
	readGotButtons readStatus = iota
	readRPCFailure
	readNonButtonMessage
	readInvalidButtonsMessage
	readRejectedByQueue
	readConsoleTerminated
)

// readUntilButtons reads messages off the stream until it observes a
// keypress for exactly (p, frame), demultiplexing every keypress it sees
// along the way into its port's queue.
func (h *Handler[B]) readUntilButtons(p port.Port, frame int) readStatus {
	for {
		ev, err := h.stream.RecvIncoming()
		if err != nil {
			return readRPCFailure
		}

		switch {
		case ev.Stop != nil:
			h.setStatus(Terminated)
			return readConsoleTerminated

		case len(ev.KeyPress) > 0:
			gotTarget := false
			for _, ks := range ev.KeyPress {
				q, ok := h.queues[ks.Port]
				if !ok {
					return readInvalidButtonsMessage
				}
				buttons, err := h.codec.Decode(ks)
				if err != nil {
					return readInvalidButtonsMessage
				}
				if err := q.Put(int(ks.FrameNumber), buttons); err != nil {
					return readRejectedByQueue
				}
				if ks.Port == p && int(ks.FrameNumber) == frame {
					gotTarget = true
				}
			}
			if gotTarget {
				return readGotButtons
			}

		default:
			return readNonButtonMessage
		}
	}
}

// TryCancel best-effort cancels the underlying stream. It carries no
// delivery guarantee for anything already in flight.
func (h *Handler[B]) TryCancel() {
	if h.stream != nil {
		_ = h.stream.Cancel()
	}
}

// LocalPorts returns the ports this handler was constructed to produce
// input for.
func (h *Handler[B]) LocalPorts() []port.Port {
	out := make([]port.Port, 0, len(h.localPort))
	for p := range h.localPort {
		out = append(out, p)
	}
	return out
}

// DelayFramesForPort returns the delay frames for a connected port, or -1
// if the port isn't connected (e.g. before ReadyAndWaitForConsoleStart has
// completed).
func (h *Handler[B]) DelayFramesForPort(p port.Port) int32 {
	d, ok := h.delay[p]
	if !ok {
		return -1
	}
	return d
}

func (h *Handler[B]) Timings() *timings.Recorder {
	return h.rec
}
