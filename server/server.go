// Package server implements the unary RPC dispatch and per-client stream
// attach loop described for the netsync front-end. It is grounded on this
// repository's pattern of a map of live objects guarded by one mutex, with
// lookups released before any blocking I/O -- the same shape previously
// used for the tunnel registry, now keyed by console id instead of label.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/inconshreveable/log15"

	"github.com/openlockstep/netsync/console"
	"github.com/openlockstep/netsync/internal/log"
	"github.com/openlockstep/netsync/transport"
	"github.com/openlockstep/netsync/wire"
)

// Server owns the console map and dispatches both the unary RPCs and the
// per-client SendEvent stream attach loop.
type Server struct {
	logger log.Logger
	debug  bool

	mu           sync.Mutex
	consoles     map[int64]*console.Console
	nextConsole  int64

	shutdown chan struct{}
	shutOnce sync.Once
}

// Option configures a Server at construction.
type Option func(*Server)

// WithLogger overrides the default no-op-wrapping log15 logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDebugMode enables ShutDownServer, which is refused outside debug
// builds.
func WithDebugMode(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

func New(opts ...Option) *Server {
	s := &Server{
		consoles: make(map[int64]*console.Console),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewLog15Logger(log15.New())
	}
	return s
}

// ShutdownRequested is closed once ShutDownServer has been honored; callers
// running the accept loop should select on it alongside their listener.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdown
}

func (s *Server) Ping(context.Context, *wire.Ping) (*wire.PingResp, error) {
	return &wire.PingResp{}, nil
}

func (s *Server) MakeConsole(req *wire.MakeConsoleRequest) *wire.MakeConsoleResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConsole++
	id := s.nextConsole
	s.consoles[id] = console.New(id, req.ConsoleTitle, req.RomName, req.RomFileMD5)

	return &wire.MakeConsoleResponse{Status: wire.MakeConsoleSuccess, ConsoleID: id}
}

func (s *Server) findConsole(id int64) *console.Console {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consoles[id]
}

func (s *Server) PlugController(req *wire.PlugControllerRequest) *wire.PlugControllerResponse {
	c := s.findConsole(req.ConsoleID)
	if c == nil {
		return &wire.PlugControllerResponse{ConsoleID: req.ConsoleID, Status: wire.PlugControllerNoSuchConsole}
	}
	return c.RequestPortMapping(req)
}

func (s *Server) StartGame(req *wire.StartGameRequest) *wire.StartGameResponse {
	c := s.findConsole(req.ConsoleID)
	if c == nil {
		return &wire.StartGameResponse{ConsoleID: req.ConsoleID, Status: wire.StartGameNoSuchConsole}
	}
	if !c.ClientsPresentAndReady() {
		return &wire.StartGameResponse{ConsoleID: req.ConsoleID, Status: wire.StartGameNotAllClientsReady}
	}
	return &wire.StartGameResponse{ConsoleID: req.ConsoleID, Status: c.Start()}
}

// ShutDownServer is honored only when the server was constructed with
// WithDebugMode(true); otherwise it reports that the server will not die.
func (s *Server) ShutDownServer(*wire.ShutDownServerRequest) *wire.ShutDownServerResponse {
	if !s.debug {
		return &wire.ShutDownServerResponse{ServerWillDie: false}
	}
	s.shutOnce.Do(func() { close(s.shutdown) })
	return &wire.ShutDownServerResponse{ServerWillDie: true}
}

// Serve drives one accepted Conn's whole lifetime: it dispatches unary RPCs
// and adopts the SendEventReq stream into the event-stream attach loop.
// Serve returns when conn.Accept stops yielding new streams (e.g. the
// underlying transport closed).
func (s *Server) Serve(conn *transport.Conn) {
	for {
		in, err := conn.Accept()
		if err != nil {
			return
		}
		go s.dispatch(in)
	}
}

func (s *Server) dispatch(in *transport.Incoming) {
	switch in.Type {
	case wire.PingReq:
		var req wire.Ping
		if err := in.DecodeRequest(&req); err != nil {
			return
		}
		resp, _ := s.Ping(context.Background(), &req)
		_ = in.Respond(resp)

	case wire.MakeConsoleReq:
		var req wire.MakeConsoleRequest
		if err := in.DecodeRequest(&req); err != nil {
			return
		}
		_ = in.Respond(s.MakeConsole(&req))

	case wire.PlugControllerReq:
		var req wire.PlugControllerRequest
		if err := in.DecodeRequest(&req); err != nil {
			return
		}
		_ = in.Respond(s.PlugController(&req))

	case wire.StartGameReq:
		var req wire.StartGameRequest
		if err := in.DecodeRequest(&req); err != nil {
			return
		}
		_ = in.Respond(s.StartGame(&req))

	case wire.ShutDownServerReq:
		var req wire.ShutDownServerRequest
		if err := in.DecodeRequest(&req); err != nil {
			return
		}
		_ = in.Respond(s.ShutDownServer(&req))

	case wire.SendEventReq:
		s.serveEventStream(in.AsEventStream())

	default:
		s.logger.Log(context.Background(), log.LogLevelWarn, "unknown request type", map[string]interface{}{"type": in.Type})
	}
}

// serveEventStream implements the SendEvent streaming RPC: it waits for
// ClientReady, registers the stream against the console's allocation, and
// then relays OutgoingEvent batches into HandleEvent until the stream ends
// or HandleEvent rejects a batch, which closes the stream.
func (s *Server) serveEventStream(es *transport.EventStream) {
	ev, err := es.RecvOutgoing()
	if err != nil {
		return
	}
	if ev.ClientReady == nil {
		_ = es.SendIncoming(&wire.IncomingEvent{InvalidData: "first message on an event stream must be ClientReady"})
		_ = es.Close()
		return
	}

	c := s.findConsole(ev.ClientReady.ConsoleID)
	if c == nil {
		_ = es.SendIncoming(&wire.IncomingEvent{InvalidData: fmt.Sprintf("no such console %d", ev.ClientReady.ConsoleID)})
		_ = es.Close()
		return
	}
	clientID := ev.ClientReady.ClientID
	if !c.RegisterStream(clientID, es) {
		_ = es.SendIncoming(&wire.IncomingEvent{InvalidData: fmt.Sprintf("no port allocation for client %d", clientID)})
		_ = es.Close()
		return
	}

	defer c.UnregisterStream(clientID)

	for {
		out, err := es.RecvOutgoing()
		if err != nil {
			return
		}
		if len(out.KeyPress) == 0 {
			continue
		}
		if !c.HandleEvent(out.KeyPress) {
			_ = es.SendIncoming(&wire.IncomingEvent{InvalidData: "keypress batch rejected"})
			_ = es.Close()
			return
		}
	}
}
