// Package client implements the top-level object an emulator-side process
// holds: one unary RPC stub plus the bookkeeping PlugControllers records,
// and a factory for the per-console streamhandler.Handler.
package client

import (
	"fmt"

	"github.com/openlockstep/netsync/codec"
	"github.com/openlockstep/netsync/internal/log"
	"github.com/openlockstep/netsync/port"
	"github.com/openlockstep/netsync/streamhandler"
	"github.com/openlockstep/netsync/timings"
	"github.com/openlockstep/netsync/transport"
	"github.com/openlockstep/netsync/wire"
)

// Client wraps one transport.Conn and the allocation state that
// PlugControllers records: console_id, client_id, the ports the server
// actually assigned, and the delay requested for them.
type Client[B any] struct {
	conn   *transport.Conn
	codec  codec.Buttons[B]
	logger log.Logger

	consoleID   int64
	clientID    int64
	localPorts  []port.Port
	delayFrames int32
	rec         *timings.Recorder
}

// New wraps conn for RPC and event-stream use. PlugControllers must be
// called successfully before MakeEventStreamHandler.
func New[B any](conn *transport.Conn, c codec.Buttons[B], logger log.Logger) *Client[B] {
	return &Client[B]{conn: conn, codec: c, logger: logger, rec: timings.New()}
}

// MakeConsole issues the MakeConsole unary RPC.
func (cl *Client[B]) MakeConsole(title, romName, romMD5 string) (*wire.MakeConsoleResponse, error) {
	req := &wire.MakeConsoleRequest{ConsoleTitle: title, RomName: romName, RomFileMD5: romMD5}
	var resp wire.MakeConsoleResponse
	if err := cl.conn.Call(wire.MakeConsoleReq, req, &resp); err != nil {
		return nil, fmt.Errorf("client: MakeConsole: %w", err)
	}
	return &resp, nil
}

// PlugControllers requests 1..4 ports on consoleID with rom identity
// romMD5 and the given delay. On success it records consoleID, the
// server-assigned client_id, and the server-assigned ports for later use
// by MakeEventStreamHandler and the accessors below.
func (cl *Client[B]) PlugControllers(consoleID int64, romMD5 string, delayFrames int32, requested []port.Port) (*wire.PlugControllerResponse, error) {
	if len(requested) < 1 || len(requested) > 4 {
		return nil, fmt.Errorf("client: PlugControllers needs 1..4 ports, got %d", len(requested))
	}

	req := &wire.PlugControllerRequest{
		ConsoleID:      consoleID,
		RomFileMD5:     romMD5,
		DelayFrames:    delayFrames,
		RequestedPort1: port.Unknown,
		RequestedPort2: port.Unknown,
		RequestedPort3: port.Unknown,
		RequestedPort4: port.Unknown,
	}
	slots := [4]*port.Port{&req.RequestedPort1, &req.RequestedPort2, &req.RequestedPort3, &req.RequestedPort4}
	for i, p := range requested {
		*slots[i] = p
	}

	cl.rec.Record(timings.PlugControllerRequestStart)
	var resp wire.PlugControllerResponse
	err := cl.conn.Call(wire.PlugControllerReq, req, &resp)
	cl.rec.Record(timings.PlugControllerResponse)
	if err != nil {
		return nil, fmt.Errorf("client: PlugControllers: %w", err)
	}

	if resp.Status == wire.PlugControllerSuccess {
		if resp.ConsoleID != consoleID {
			return &resp, fmt.Errorf("client: PlugControllers console_id mismatch: got %d want %d", resp.ConsoleID, consoleID)
		}
		cl.consoleID = consoleID
		cl.clientID = resp.ClientID
		cl.localPorts = resp.Port
		cl.delayFrames = delayFrames
	}
	return &resp, nil
}

// StartGame issues the StartGame unary RPC for the console this client is
// plugged into.
func (cl *Client[B]) StartGame() (*wire.StartGameResponse, error) {
	var resp wire.StartGameResponse
	if err := cl.conn.Call(wire.StartGameReq, &wire.StartGameRequest{ConsoleID: cl.consoleID}, &resp); err != nil {
		return nil, fmt.Errorf("client: StartGame: %w", err)
	}
	return &resp, nil
}

// MakeEventStreamHandler builds the streamhandler.Handler bound to this
// client's recorded console_id, client_id and local_ports. Call
// ReadyAndWaitForConsoleStart on the result before using it.
func (cl *Client[B]) MakeEventStreamHandler() *streamhandler.Handler[B] {
	if cl.clientID == 0 {
		return nil
	}
	return streamhandler.New[B](cl.consoleID, cl.clientID, cl.localPorts, cl.codec, cl.conn, cl.rec, cl.logger)
}

func (cl *Client[B]) DelayFrames() int32        { return cl.delayFrames }
func (cl *Client[B]) ConsoleID() int64          { return cl.consoleID }
func (cl *Client[B]) ClientID() int64           { return cl.clientID }
func (cl *Client[B]) LocalPorts() []port.Port   { return cl.localPorts }
func (cl *Client[B]) Timings() *timings.Recorder { return cl.rec }
