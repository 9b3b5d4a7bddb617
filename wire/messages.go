// Package wire defines the message schemas exchanged between a netsync
// client and server. Every field carries a `wire:"N"` struct tag assigning
// its stable field number; the wire format itself (package-level Marshal
// and Unmarshal, see wireformat.go) is a hand-rolled protobuf encoding
// built on google.golang.org/protobuf's wire-format primitives. Field
// numbers, once shipped, must never be reassigned -- the same rule the
// ReqType block below already called out for request-type codes.
package wire

import "github.com/openlockstep/netsync/port"

// ReqType tags a muxado stream with the kind of request it carries, letting
// the receiving side dispatch before it has deserialized anything.
type ReqType uint32

// NOTE: never change the number associated with an already-shipped ReqType;
// doing so breaks wire compatibility with existing peers.
const (
	PingReq ReqType = iota
	MakeConsoleReq
	PlugControllerReq
	StartGameReq
	ShutDownServerReq
	// SendEventReq tags the single long-lived bidirectional stream a client
	// keeps open for the lifetime of a console: ClientReady, keypress
	// batches, and the server's StartGame/StopConsole/keypress replies all
	// flow over it.
	SendEventReq
)

type Ping struct{}
type PingResp struct{}

type MakeConsoleRequest struct {
	ConsoleTitle string `wire:"1"`
	RomName      string `wire:"2"`
	RomFileMD5   string `wire:"3"`
}

type MakeConsoleStatus int32

const (
	MakeConsoleUnknown MakeConsoleStatus = iota
	MakeConsoleSuccess
	MakeConsoleUnspecifiedFailure
)

type MakeConsoleResponse struct {
	Status    MakeConsoleStatus `wire:"1"`
	ConsoleID int64             `wire:"2"`
}

type PlugControllerRequest struct {
	ConsoleID      int64     `wire:"1"`
	RomFileMD5     string    `wire:"2"`
	DelayFrames    int32     `wire:"3"`
	RequestedPort1 port.Port `wire:"4"`
	RequestedPort2 port.Port `wire:"5"`
	RequestedPort3 port.Port `wire:"6"`
	RequestedPort4 port.Port `wire:"7"`
}

// RequestedPorts returns all four request slots in their declared order
// (slot 1..4), exactly as PlugControllerRequest carries them on the wire,
// including any slot left as port.Unknown.
func (r *PlugControllerRequest) RequestedPorts() []port.Port {
	return []port.Port{r.RequestedPort1, r.RequestedPort2, r.RequestedPort3, r.RequestedPort4}
}

type PlugControllerStatus int32

const (
	PlugControllerUnknown PlugControllerStatus = iota
	PlugControllerSuccess
	PlugControllerNoSuchConsole
	PlugControllerRomMD5Mismatch
	PlugControllerNoPortsRequested
	PlugControllerPortRequestRejected
	PlugControllerUnspecifiedFailure
)

type PortRejectionReason int32

const (
	PortRejectionUnspecified PortRejectionReason = iota
	PortAlreadyOccupied
)

type PortRejection struct {
	Requested port.Port           `wire:"1"`
	Reason    PortRejectionReason `wire:"2"`
}

type PlugControllerResponse struct {
	ConsoleID      int64               `wire:"1"`
	Status         PlugControllerStatus `wire:"2"`
	ClientID       int64               `wire:"3"`
	Port           []port.Port         `wire:"4"`
	PortRejections []PortRejection     `wire:"5"`
}

type StartGameRequest struct {
	ConsoleID int64 `wire:"1"`
}

type StartGameStatus int32

const (
	StartGameUnknown StartGameStatus = iota
	StartGameSuccess
	StartGameNoSuchConsole
	StartGameNotAllClientsReady
	StartGameUnspecifiedFailure
)

type StartGameResponse struct {
	ConsoleID int64           `wire:"1"`
	Status    StartGameStatus `wire:"2"`
}

type ShutDownServerRequest struct{}

type ShutDownServerResponse struct {
	ServerWillDie bool `wire:"1"`
}

// ConnectedPort describes one port's final allocation as announced by the
// server's StartGame message: which slot, and the delay (in frames) that
// port's producer applies before its inputs become visible to consumers.
type ConnectedPort struct {
	Port        port.Port `wire:"1"`
	DelayFrames int32     `wire:"2"`
}

type StopReason int32

const (
	StopReasonUnspecified StopReason = iota
	StopReasonError
	StopReasonRequestedByClient
)

// KeyState is the wire keypress record. The core treats the button fields
// as opaque; only a Codec (see package codec) interprets them.
type KeyState struct {
	ConsoleID   int64     `wire:"1"`
	Port        port.Port `wire:"2"`
	FrameNumber int32     `wire:"3"`
	Buttons     [16]bool  `wire:"4"`
	XAxis       int32     `wire:"5"`
	YAxis       int32     `wire:"6"`
	Reserved1   int32     `wire:"7"`
	Reserved2   int32     `wire:"8"`
}

// ClientReady is the first message a client sends on its event stream; it
// self-identifies the stream to the server so RegisterStream can attach it
// to the client's earlier port allocation.
type ClientReady struct {
	ConsoleID int64 `wire:"1"`
	ClientID  int64 `wire:"2"`
}

// OutgoingEvent is a message sent from client to server on the event
// stream. Exactly one of its fields is meaningful per message.
type OutgoingEvent struct {
	ClientReady *ClientReady `wire:"1"`
	KeyPress    []KeyState   `wire:"2"`
}

// IncomingEvent is a message sent from server to client on the event
// stream. Exactly one of its fields is meaningful per message.
type IncomingEvent struct {
	StartGame *StartGameEvent   `wire:"1"`
	Stop      *StopConsoleEvent `wire:"2"`
	KeyPress  []KeyState        `wire:"3"`
	// InvalidData carries a human-readable complaint when the server
	// rejects a message it received before understanding its protocol
	// context (e.g. anything before ClientReady).
	InvalidData string `wire:"4"`
}

type StartGameEvent struct {
	ConsoleID      int64           `wire:"1"`
	ConnectedPorts []ConnectedPort `wire:"2"`
}

type StopConsoleEvent struct {
	ConsoleID int64      `wire:"1"`
	Reason    StopReason `wire:"2"`
}
