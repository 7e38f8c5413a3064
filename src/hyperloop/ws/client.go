package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/ident"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/trace"
	"github.com/hyperloop/hyperloop-go/src/internal/opentr"
	"github.com/hyperloop/hyperloop-go/src/internal/service"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// client is a websocket-based implementation of hyperloop.Client.
type client struct {
	service.Service
	sm *service.StateMachine

	peerID         ident.PeerID
	identity       string
	sock           *websocket.Conn
	logger         twelf.Logger
	tracer         opentracing.Tracer
	defaultTimeout time.Duration
	pingInterval   time.Duration

	parentCtx context.Context // parent of all contexts passed to handlers
	cancelCtx func()          // cancels parentCtx when the client stops

	mutex       sync.RWMutex
	handlers    map[string]localFunction
	onBroadcast hyperloop.BroadcastHandler
	hubVersion  string

	registered     chan struct{} // closed when the hub acknowledges registration
	registeredOnce sync.Once

	inbound  chan wire.Message
	outbound chan []byte
	sockErr  chan error
	track    chan call     // add information about a call to pending
	cancel   chan call     // remove call information from pending
	handled  chan struct{} // signals handler invocations have completed

	// state-machine data
	pending   map[string]chan []byte // map of call ID to reply channel
	executing uint                   // number of handler invocations in flight
}

// call associates the ID of an outstanding call with the channel used to
// deliver its raw return-value payload.
type call struct {
	ID    string
	Reply chan []byte
}

// localFunction is one entry in the client's local function table.
type localFunction struct {
	handler hyperloop.Handler
	args    hyperloop.ArgsInfo
}

func newClient(
	peerID ident.PeerID,
	identity string,
	sock *websocket.Conn,
	cfg hyperloop.Config,
) *client {
	c := &client{
		peerID:         peerID,
		identity:       identity,
		sock:           sock,
		logger:         cfg.Logger,
		tracer:         cfg.Tracer,
		defaultTimeout: cfg.DefaultTimeout,
		pingInterval:   cfg.PingInterval,

		handlers: map[string]localFunction{},

		registered: make(chan struct{}),

		inbound:  make(chan wire.Message),
		outbound: make(chan []byte, sendBuffer),
		sockErr:  make(chan error, 1),
		track:    make(chan call),
		cancel:   make(chan call),
		handled:  make(chan struct{}),

		pending: map[string]chan []byte{},
	}

	c.parentCtx, c.cancelCtx = context.WithCancel(context.Background())

	c.sm = service.NewStateMachine(c.run, c.finalize)
	c.Service = c.sm

	go c.readPump()
	go c.writePump()
	go c.sm.Run()

	return c
}

func (c *client) ID() ident.PeerID {
	return c.peerID
}

func (c *client) Identity() string {
	return c.identity
}

func (c *client) HubVersion() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.hubVersion
}

func (c *client) Register(
	id string,
	info hyperloop.ArgsInfo,
	handler hyperloop.Handler,
) error {
	if handler == nil {
		panic("handler must not be nil")
	}

	c.mutex.Lock()
	c.handlers[id] = localFunction{handler, info} // silently replaces any prior handler
	c.mutex.Unlock()

	err := c.send(wire.RegisterFunction{ID: id, Args: info})
	if err == nil {
		logFunctionRegistered(c.logger, c.peerID, id)
	}

	return err
}

func (c *client) Call(
	ctx context.Context,
	id string,
	args interface{},
) (json.RawMessage, error) {
	callID := ident.NewCallID().String()
	traceID := trace.Get(ctx)

	span := c.tracer.StartSpan("")
	defer span.Finish()

	opentr.SetupCall(span, callID, id)
	opentr.AddTraceID(span, traceID)
	opentr.LogRequesterCall(span)

	raw, err := wire.Encode(args)
	if err != nil {
		return nil, err
	}

	logCallBegin(c.logger, c.peerID, id, callID, traceID)

	data, err := c.roundTrip(ctx, callID, wire.Call{
		ID:     id,
		CallID: callID,
		Trace:  traceID,
		Args:   raw,
	})
	if err != nil {
		opentr.LogRequesterError(span, err)
		logCallEnd(c.logger, c.peerID, id, callID, traceID, err)
		return nil, err
	}

	var res wire.Result
	if err := wire.Decode(data, &res); err != nil {
		err = hyperloop.ProtocolError("malformed return value: " + err.Error())
		opentr.LogRequesterError(span, err)
		return nil, err
	}

	if res.Error {
		err := hyperloop.Failure{Reason: res.FailureReason()}
		opentr.LogRequesterError(span, err)
		logCallEnd(c.logger, c.peerID, id, callID, traceID, err)
		return nil, err
	}

	opentr.LogRequesterSuccess(span)
	logCallEnd(c.logger, c.peerID, id, callID, traceID, nil)

	return json.RawMessage(res.Result), nil
}

func (c *client) Functions(ctx context.Context) ([]hyperloop.FunctionInfo, error) {
	callID := ident.NewCallID().String()

	data, err := c.roundTrip(ctx, callID, wire.ListFunctions{CallID: callID})
	if err != nil {
		return nil, err
	}

	var infos []hyperloop.FunctionInfo
	if err := wire.Decode(data, &infos); err != nil {
		return nil, hyperloop.ProtocolError("malformed directory listing: " + err.Error())
	}

	return infos, nil
}

func (c *client) OnBroadcast(h hyperloop.BroadcastHandler) {
	c.mutex.Lock()
	c.onBroadcast = h
	c.mutex.Unlock()
}

// roundTrip issues a correlated request and awaits the raw payload of the
// matching return value.
func (c *client) roundTrip(
	ctx context.Context,
	callID string,
	m wire.Message,
) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}

	// calls are deferred until the hub has acknowledged registration; the
	// gate is normally already open by the time the dialer returns.
	select {
	case <-c.registered:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.sm.Finalized:
		return nil, service.ErrStopped
	}

	t := call{callID, make(chan []byte, 1)}

	select {
	case c.track <- t:
		// ready to send
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.sm.Graceful:
		return nil, service.ErrStopped
	case <-c.sm.Forceful:
		return nil, service.ErrStopped
	}

	// notify the run loop that we're bailing if it hasn't already sent us
	// our reply
	defer func() {
		select {
		case <-t.Reply:
		default:
			select {
			case c.cancel <- t:
			case <-c.sm.Finalized:
			}
		}
	}()

	if err := c.send(m); err != nil {
		return nil, err
	}

	select {
	case data := <-t.Reply:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.sm.Forceful:
		return nil, service.ErrStopped
	}
}

// send marshals m and queues it for the write pump.
func (c *client) send(m wire.Message) error {
	buf, err := wire.Marshal(m)
	if err != nil {
		return err
	}

	select {
	case c.outbound <- buf:
		return nil
	case <-c.sm.Forceful:
		return service.ErrStopped
	case <-c.sm.Finalized:
		return service.ErrStopped
	}
}

// run is the state entered when the client starts.
func (c *client) run() (service.State, error) {
	for {
		select {
		case t := <-c.track:
			c.pending[t.ID] = t.Reply

		case t := <-c.cancel:
			delete(c.pending, t.ID)

		case m := <-c.inbound:
			c.dispatch(m)

		case <-c.handled:
			c.executing--

		case cmd := <-c.sm.Commands:
			c.sm.Execute(cmd)

		case <-c.sm.Graceful:
			return c.graceful, nil

		case <-c.sm.Forceful:
			return c.forceful, nil

		case err := <-c.sockErr:
			return nil, err
		}
	}
}

// graceful is the state entered when a graceful stop is requested. The
// client keeps servicing the socket until outstanding calls have resolved
// and in-flight handler invocations have completed.
func (c *client) graceful() (service.State, error) {
	logClientStopping(c.logger, c.peerID, len(c.pending), c.executing)

	for len(c.pending) > 0 || c.executing > 0 {
		select {
		case t := <-c.cancel:
			delete(c.pending, t.ID)

		case m := <-c.inbound:
			c.dispatch(m)

		case <-c.handled:
			c.executing--

		case <-c.sm.Forceful:
			return c.forceful, nil

		case err := <-c.sockErr:
			return nil, err
		}
	}

	return c.forceful, nil
}

// forceful is the state entered when a stop is requested.
func (c *client) forceful() (service.State, error) {
	c.cancelCtx()

	_ = c.sock.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)

	return nil, c.sock.Close()
}

// finalize is the state-machine finalizer, called immediately before the
// Done() channel is closed.
func (c *client) finalize(err error) error {
	c.cancelCtx()
	logClientStop(c.logger, c.peerID, err)
	return err
}

// readPump reads inbound messages and forwards them to the run loop. It runs
// in its own goroutine.
func (c *client) readPump() {
	pongWait := c.pingInterval * 2

	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, buf, err := c.sock.ReadMessage()
		if err != nil {
			select {
			case c.sockErr <- err:
			default:
			}
			return
		}

		_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))

		m, err := wire.Unmarshal(buf)
		if err != nil {
			logProtocolError(c.logger, c.peerID, err)
			continue
		}

		select {
		case c.inbound <- m:
		case <-c.sm.Finalized:
			return
		}
	}
}

// writePump serializes all socket writes, interleaving keep-alive pings. It
// runs in its own goroutine.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case buf := <-c.outbound:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, buf); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.sm.Finalized:
			return
		}
	}
}

// writeWait is the maximum time allowed for a single socket write.
const writeWait = 10 * time.Second

// sendBuffer is the number of outbound messages buffered before send blocks.
const sendBuffer = 64
