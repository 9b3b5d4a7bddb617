// Package console implements the per-session coordinator: port allocation,
// stream registration, and keypress fan-out for one running (or
// not-yet-running, or already-stopped) console. It is grounded on the same
// "map guarded by its own mutex, network writes issued after release"
// shape this repository used for its tunnel registries, generalized from a
// label/id keyed map to a port-keyed one.
package console

import (
	"sort"
	"sync"

	"github.com/openlockstep/netsync/port"
	"github.com/openlockstep/netsync/wire"
)

// Stream is the write half of a client's bidirectional event stream, as far
// as the coordinator needs it. A ClientBinding holds one without owning it:
// the design notes describe this as a weak reference, invalidated by
// UnregisterStream when the stream's owning task exits.
type Stream interface {
	SendIncoming(ev *wire.IncomingEvent) error
}

type Status int32

const (
	Created Status = iota
	Running
	Terminated
)

func (s Status) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Running:
		return "RUNNING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// ClientBinding is one allocated port's ownership record. Multiple ports
// may share a ClientID when one client occupies several ports; they also
// share a Stream, set together by RegisterStream.
type ClientBinding struct {
	ClientID    int64
	DelayFrames int32
	Stream      Stream
}

// Console is one session's port allocator, stream registry, and broadcast
// fan-out point. All fields below the mutex are protected by it; network
// writes are always issued after releasing it.
type Console struct {
	id       int64
	title    string
	romName  string
	romHash  string

	mu           sync.Mutex
	clients      map[port.Port]*ClientBinding
	nextClientID int64
	status       Status
}

func New(id int64, title, romName, romHash string) *Console {
	return &Console{
		id:      id,
		title:   title,
		romName: romName,
		romHash: romHash,
		clients: make(map[port.Port]*ClientBinding),
	}
}

func (c *Console) ID() int64      { return c.id }
func (c *Console) RomHash() string { return c.romHash }

func (c *Console) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RequestPortMapping implements the sort-then-greedy-allocate algorithm:
// concrete requests are satisfied before PORT_ANY wildcards are allowed to
// consume the slots they'd otherwise need.
func (c *Console) RequestPortMapping(req *wire.PlugControllerRequest) *wire.PlugControllerResponse {
	if req.RomFileMD5 != c.romHash {
		return &wire.PlugControllerResponse{ConsoleID: c.id, Status: wire.PlugControllerRomMD5Mismatch}
	}

	requested := req.RequestedPorts()
	active := make([]port.Port, 0, len(requested))
	for _, p := range requested {
		if p != port.Unknown {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return &wire.PlugControllerResponse{ConsoleID: c.id, Status: wire.PlugControllerNoPortsRequested}
	}
	port.SortRequestsConcreteFirst(active)

	c.mu.Lock()
	defer c.mu.Unlock()

	occupied := make(map[port.Port]bool, len(c.clients))
	for p := range c.clients {
		occupied[p] = true
	}

	tentativeClientID := c.nextClientID + 1
	allocated := make([]port.Port, 0, len(active))
	var rejections []wire.PortRejection

	for _, want := range active {
		chosen := port.Unknown
		if want == port.Any {
			for _, cand := range port.Concrete {
				if !occupied[cand] {
					chosen = cand
					break
				}
			}
		} else if !occupied[want] {
			chosen = want
		}

		if chosen == port.Unknown {
			rejections = append(rejections, wire.PortRejection{Requested: want, Reason: wire.PortAlreadyOccupied})
			break
		}
		occupied[chosen] = true
		allocated = append(allocated, chosen)
	}

	if len(rejections) > 0 {
		return &wire.PlugControllerResponse{
			ConsoleID:      c.id,
			Status:         wire.PlugControllerPortRequestRejected,
			PortRejections: rejections,
		}
	}

	c.nextClientID = tentativeClientID
	for _, p := range allocated {
		c.clients[p] = &ClientBinding{ClientID: tentativeClientID, DelayFrames: req.DelayFrames}
	}

	return &wire.PlugControllerResponse{
		ConsoleID: c.id,
		Status:    wire.PlugControllerSuccess,
		ClientID:  tentativeClientID,
		Port:      allocated,
	}
}

// RegisterStream attaches stream to every ClientBinding owned by clientID.
// It reports whether any binding matched.
func (c *Console) RegisterStream(clientID int64, stream Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	matched := false
	for _, b := range c.clients {
		if b.ClientID == clientID {
			b.Stream = stream
			matched = true
		}
	}
	return matched
}

// UnregisterStream clears the stream for every binding owned by clientID,
// as happens when that client's SendEvent loop exits. If no binding in the
// console retains a live stream afterward, the console transitions to
// TERMINATED and UnregisterStream reports that this was the last one.
func (c *Console) UnregisterStream(clientID int64) (wasLast bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.clients {
		if b.ClientID == clientID {
			b.Stream = nil
		}
	}

	for _, b := range c.clients {
		if b.Stream != nil {
			return false
		}
	}
	c.status = Terminated
	return true
}

// ClientsPresentAndReady reports whether the console has at least one
// allocated port and every ClientBinding has an attached stream.
func (c *Console) ClientsPresentAndReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.clients) == 0 {
		return false
	}
	for _, b := range c.clients {
		if b.Stream == nil {
			return false
		}
	}
	return true
}

// Start transitions CREATED -> RUNNING and emits one StartGame message on
// every registered stream, carrying the final connected-port list and each
// port's delay. It fails with StartGameNotAllClientsReady if the console
// isn't ready, without mutating state.
func (c *Console) Start() wire.StartGameStatus {
	c.mu.Lock()
	if len(c.clients) == 0 {
		c.mu.Unlock()
		return wire.StartGameNotAllClientsReady
	}
	for _, b := range c.clients {
		if b.Stream == nil {
			c.mu.Unlock()
			return wire.StartGameNotAllClientsReady
		}
	}

	connected := make([]wire.ConnectedPort, 0, len(c.clients))
	streams := make([]Stream, 0, len(c.clients))
	seen := make(map[int64]bool, len(c.clients))
	for p, b := range c.clients {
		connected = append(connected, wire.ConnectedPort{Port: p, DelayFrames: b.DelayFrames})
		if !seen[b.ClientID] {
			seen[b.ClientID] = true
			streams = append(streams, b.Stream)
		}
	}
	sort.Slice(connected, func(i, j int) bool { return connected[i].Port < connected[j].Port })

	c.status = Running
	c.mu.Unlock()

	ev := &wire.IncomingEvent{StartGame: &wire.StartGameEvent{ConsoleID: c.id, ConnectedPorts: connected}}
	for _, s := range streams {
		_ = s.SendIncoming(ev)
	}
	return wire.StartGameSuccess
}

// Stop emits StopConsole on every registered stream and transitions to
// TERMINATED, regardless of current status.
func (c *Console) Stop(reason wire.StopReason) {
	c.mu.Lock()
	c.status = Terminated
	streams := make([]Stream, 0, len(c.clients))
	seen := make(map[int64]bool, len(c.clients))
	for _, b := range c.clients {
		if b.Stream != nil && !seen[b.ClientID] {
			seen[b.ClientID] = true
			streams = append(streams, b.Stream)
		}
	}
	c.mu.Unlock()

	ev := &wire.IncomingEvent{Stop: &wire.StopConsoleEvent{ConsoleID: c.id, Reason: reason}}
	for _, s := range streams {
		_ = s.SendIncoming(ev)
	}
}

// HandleEvent fans a keypress batch out to every other client registered to
// this console. A keypress's producer is identified implicitly by port
// ownership -- the owning client is never among the recipients of its own
// input -- so distribution needs no separate "who sent this" parameter.
// Every keypress's ConsoleID must match; a mismatch rejects the whole
// batch. Broadcasting is only permitted once the console is RUNNING.
func (c *Console) HandleEvent(keypresses []wire.KeyState) bool {
	for _, ks := range keypresses {
		if ks.ConsoleID != c.id {
			return false
		}
	}

	c.mu.Lock()
	if c.status != Running {
		c.mu.Unlock()
		return false
	}

	streamOf := make(map[int64]Stream)
	for _, b := range c.clients {
		if b.Stream != nil {
			streamOf[b.ClientID] = b.Stream
		}
	}

	perClient := make(map[int64]*wire.IncomingEvent)
	for _, ks := range keypresses {
		owner, ok := c.clients[ks.Port]
		if !ok {
			continue
		}
		for clientID := range streamOf {
			if clientID == owner.ClientID {
				continue
			}
			ev, ok := perClient[clientID]
			if !ok {
				ev = &wire.IncomingEvent{}
				perClient[clientID] = ev
			}
			ev.KeyPress = append(ev.KeyPress, ks)
		}
	}
	c.mu.Unlock()

	for clientID, ev := range perClient {
		if len(ev.KeyPress) == 0 {
			continue
		}
		_ = streamOf[clientID].SendIncoming(ev)
	}
	return true
}
