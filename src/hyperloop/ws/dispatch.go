package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/trace"
	"github.com/hyperloop/hyperloop-go/src/internal/opentr"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
)

// dispatch handles one inbound message to completion before the run loop
// proceeds to the next; the pending-call table is only ever touched here and
// via the track/cancel channels, so it needs no locking.
func (c *client) dispatch(m wire.Message) {
	switch msg := m.(type) {
	case wire.Registered:
		c.acknowledge(msg)

	case wire.Call:
		c.request(msg)

	case wire.ReturnValue:
		c.resolve(msg)

	case wire.Broadcast:
		c.broadcast(msg)

	case wire.Register, wire.RegisterFunction, wire.ListFunctions:
		// only ever sent client-to-hub
		logIgnoredMessage(c.logger, c.peerID, m)
	}
}

// acknowledge opens the registration gate, releasing any calls waiting on
// it.
func (c *client) acknowledge(msg wire.Registered) {
	c.mutex.Lock()
	c.hubVersion = msg.Version
	c.mutex.Unlock()

	c.registeredOnce.Do(func() {
		close(c.registered)
	})
}

// request services a call routed to this client as a provider. The handler
// runs in its own goroutine so a slow function never stalls the protocol
// loop; the run loop tracks it for graceful shutdown.
func (c *client) request(msg wire.Call) {
	c.mutex.RLock()
	fn, ok := c.handlers[msg.ID]
	c.mutex.RUnlock()

	if !ok {
		logNoHandler(c.logger, c.peerID, msg.ID, msg.CallID)
		c.reply(msg.CallID, wire.Result{
			Error:  true,
			Reason: hyperloop.ReasonNoEndpoint,
		})
		return
	}

	c.executing++
	go c.invoke(msg, fn)
}

// invoke executes a locally registered handler and replies with its result.
// A handler error or panic becomes an ordinary failure payload; it never
// tears down the client.
func (c *client) invoke(msg wire.Call, fn localFunction) {
	defer func() {
		select {
		case c.handled <- struct{}{}:
		case <-c.sm.Finalized:
		}
	}()

	span := c.tracer.StartSpan("")
	defer span.Finish()

	opentr.SetupCall(span, msg.CallID, msg.ID)
	opentr.AddTraceID(span, msg.Trace)
	opentr.LogProviderRequest(span)

	ctx := c.parentCtx
	if msg.Trace != "" {
		ctx = trace.With(ctx, msg.Trace)
	}

	req := hyperloop.Request{
		Function: msg.ID,
		CallID:   msg.CallID,
		Args:     json.RawMessage(msg.Args),
		Logger:   c.logger,
	}

	start := time.Now()
	logRequestBegin(c.logger, c.peerID, msg.ID, msg.CallID)

	result, err := runHandler(ctx, fn.handler, req)

	opentr.LogProviderResponse(span, err)
	logRequestEnd(c.logger, c.peerID, msg.ID, msg.CallID, time.Since(start), err)

	if err != nil {
		c.reply(msg.CallID, wire.Result{Error: true, Reason: err.Error()})
		return
	}

	raw, err := wire.Encode(result)
	if err != nil {
		c.reply(msg.CallID, wire.Result{Error: true, Reason: err.Error()})
		return
	}

	c.reply(msg.CallID, wire.Result{Error: false, Result: raw})
}

// runHandler invokes h, converting a panic into an ordinary error.
func runHandler(
	ctx context.Context,
	h hyperloop.Handler,
	req hyperloop.Request,
) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%v", p)
		}
	}()

	return h(ctx, req)
}

// reply sends a return value for the given call ID.
func (c *client) reply(callID string, res wire.Result) {
	data, err := wire.Encode(res)
	if err != nil {
		return
	}

	_ = c.send(wire.ReturnValue{CallID: callID, Data: data})
}

// resolve fulfils the pending call matching a return value. Unknown call IDs
// are logged and dropped; the entry is consumed exactly once, so a duplicate
// return value for the same call is indistinguishable from an unknown one.
func (c *client) resolve(msg wire.ReturnValue) {
	reply := c.pending[msg.CallID]
	if reply == nil {
		logUnknownReturn(c.logger, c.peerID, msg.CallID)
		return
	}

	delete(c.pending, msg.CallID)
	reply <- msg.Data // buffered chan
	close(reply)
}

// broadcast delivers a hub broadcast to the application's handler, if any.
func (c *client) broadcast(msg wire.Broadcast) {
	c.mutex.RLock()
	h := c.onBroadcast
	c.mutex.RUnlock()

	if h == nil {
		return
	}

	logBroadcastReceived(c.logger, c.peerID)
	go h(json.RawMessage(msg.Data))
}
