package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/internal/service"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// Hub is the central broker of a Hyperloop network.
//
// It accepts websocket connections, maintains the global function table, and
// routes calls from requesters to providers and return values back again. The
// hub owns no business logic; every routing operation is a synchronous table
// lookup plus a send, performed by a single goroutine.
//
// Hub implements http.Handler; mount it on any HTTP server to accept client
// connections.
type Hub struct {
	service.Service
	sm *service.StateMachine

	logger       twelf.Logger
	tracer       opentracing.Tracer
	version      string
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	accepted chan *connection
	closed   chan *connection
	inbound  chan inbound

	// state-machine data; owned exclusively by the run loop
	conns     map[*connection]struct{}
	functions map[string]*registration
	lobby     map[string]*lobbyEntry
}

// inbound pairs a decoded message with the connection that sent it.
type inbound struct {
	conn *connection
	msg  wire.Message
}

// registration is one entry in the hub's global function table.
type registration struct {
	id       string
	provider *connection
	args     hyperloop.ArgsInfo
}

// lobbyEntry records where a routed call came from, purely so the eventual
// return value can be routed back. Consumed at most once.
type lobbyEntry struct {
	callID    string
	requester *connection
	provider  *connection
}

// New creates and starts a new hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		accepted: make(chan *connection),
		closed:   make(chan *connection),
		inbound:  make(chan inbound),

		conns:     map[*connection]struct{}{},
		functions: map[string]*registration{},
		lobby:     map[string]*lobbyEntry{},
	}

	applyOptions(h, opts)

	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	h.sm = service.NewStateMachine(h.run, h.finalize)
	h.Service = h.sm

	go h.sm.Run()

	return h
}

// ServeHTTP upgrades an HTTP request to a websocket connection and hands it
// to the routing loop.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logUpgradeFailed(h.logger, err)
		return
	}

	c := newConnection(sock)

	select {
	case h.accepted <- c:
	case <-h.sm.Graceful:
		_ = sock.Close()
		return
	case <-h.sm.Finalized:
		_ = sock.Close()
		return
	}

	go c.readPump(h)
	go c.writePump(h.pingInterval)
}

// Broadcast sends payload to every currently-connected client. Clients that
// connect later do not receive it.
func (h *Hub) Broadcast(payload interface{}) error {
	raw, err := wire.Encode(payload)
	if err != nil {
		return err
	}

	return h.sm.Do(func() error {
		h.broadcastRaw(raw)
		return nil
	})
}

// NumClients returns the number of currently-connected clients.
func (h *Hub) NumClients() (n int, err error) {
	err = h.sm.Do(func() error {
		n = len(h.conns)
		return nil
	})
	return
}

// run is the state entered when the hub starts.
func (h *Hub) run() (service.State, error) {
	logHubStart(h.logger, h.version)

	for {
		select {
		case c := <-h.accepted:
			h.accept(c)

		case c := <-h.closed:
			h.close(c)

		case in := <-h.inbound:
			h.dispatch(in.conn, in.msg)

		case cmd := <-h.sm.Commands:
			h.sm.Execute(cmd)

		case <-h.sm.Graceful:
			return h.graceful, nil

		case <-h.sm.Forceful:
			return h.forceful, nil
		}
	}
}

// graceful is the state entered when a graceful stop is requested. The hub
// stops accepting connections but keeps routing until the lobby drains.
func (h *Hub) graceful() (service.State, error) {
	logHubStopping(h.logger, len(h.lobby))

	for len(h.lobby) > 0 {
		select {
		case c := <-h.closed:
			h.close(c)

		case in := <-h.inbound:
			h.dispatch(in.conn, in.msg)

		case <-h.sm.Forceful:
			return h.forceful, nil
		}
	}

	return h.forceful, nil
}

// forceful is the state entered when a stop is requested.
func (h *Hub) forceful() (service.State, error) {
	for c := range h.conns {
		delete(h.conns, c)
		c.shutdown()
	}

	return nil, nil
}

// finalize is the state-machine finalizer, called immediately before the
// Done() channel is closed.
func (h *Hub) finalize(err error) error {
	logHubStop(h.logger, err)
	return err
}

// accept admits a new connection to the routing tables.
func (h *Hub) accept(c *connection) {
	h.conns[c] = struct{}{}

	logAccepted(h.logger, c, len(h.conns))
	h.broadcastClientCount()
}

// close purges every piece of routing state owned by c. Calls that c was
// serving as a provider are failed back to their requesters; calls that c was
// awaiting as a requester become unroutable and are dropped.
func (h *Hub) close(c *connection) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)

	for id := range c.functions {
		if reg, ok := h.functions[id]; ok && reg.provider == c {
			delete(h.functions, id)
		}
	}

	for callID := range c.serving {
		if e, ok := h.lobby[callID]; ok {
			h.failCall(e, hyperloop.ReasonProviderDisconnected)
			logProviderDisconnected(h.logger, c, callID)
		}
	}

	for callID := range c.requested {
		if e, ok := h.lobby[callID]; ok {
			h.deleteLobbyEntry(e)
		}
	}

	c.shutdown()

	logClosed(h.logger, c, len(h.conns))
	h.broadcastClientCount()
}

// deliver writes m to c, closing c if it can not keep up.
func (h *Hub) deliver(c *connection, m wire.Message) {
	ok, err := c.write(m)
	if err != nil {
		logDeliveryFailed(h.logger, c, err)
		return
	}

	if !ok {
		logSlowConsumer(h.logger, c)
		h.close(c)
	}
}

func (h *Hub) broadcastRaw(raw []byte) {
	buf, err := wire.Marshal(wire.Broadcast{Data: raw})
	if err != nil {
		return
	}

	var slow []*connection

	for c := range h.conns {
		select {
		case c.send <- buf:
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		logSlowConsumer(h.logger, c)
		h.close(c)
	}
}

// clientCount is the payload broadcast whenever a client joins or leaves.
type clientCount struct {
	NumConnectedClients int `json:"num_connected_clients"`
}

func (h *Hub) broadcastClientCount() {
	raw, err := wire.Encode(clientCount{NumConnectedClients: len(h.conns)})
	if err != nil {
		return
	}

	h.broadcastRaw(raw)
}

// failCall replies to a lobby entry's requester with a failure payload and
// consumes the entry.
func (h *Hub) failCall(e *lobbyEntry, reason string) {
	data, err := wire.Encode(wire.Result{Error: true, Reason: reason})
	if err == nil {
		h.deliver(e.requester, wire.ReturnValue{CallID: e.callID, Data: data})
	}

	h.deleteLobbyEntry(e)
}

func (h *Hub) deleteLobbyEntry(e *lobbyEntry) {
	delete(h.lobby, e.callID)
	delete(e.requester.requested, e.callID)
	delete(e.provider.serving, e.callID)
}
