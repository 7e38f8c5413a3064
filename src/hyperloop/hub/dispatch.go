package hub

import (
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/internal/opentr"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
)

// dispatch handles one inbound protocol message to completion before the run
// loop proceeds to the next, so the routing tables never need locking.
func (h *Hub) dispatch(c *connection, m wire.Message) {
	switch msg := m.(type) {
	case wire.Register:
		h.register(c, msg)

	case wire.RegisterFunction:
		h.registerFunction(c, msg)

	case wire.Call:
		h.call(c, msg)

	case wire.ReturnValue:
		h.returnValue(c, msg)

	case wire.ListFunctions:
		h.listFunctions(c, msg)

	case wire.Broadcast:
		h.broadcastRaw(msg.Data)
		logBroadcast(h.logger, c)

	case wire.Registered:
		// only ever sent hub-to-client
		logIgnoredMessage(h.logger, c, m)
	}
}

// register records the connection's declared identity. It always succeeds;
// identity is advisory and no routing state is keyed by it.
func (h *Hub) register(c *connection, msg wire.Register) {
	c.identity = msg.ID

	logRegistered(h.logger, c)
	h.deliver(c, wire.Registered{Version: h.version})
}

// registerFunction inserts or silently replaces the function-table entry for
// the given ID. The last registration wins.
func (h *Hub) registerFunction(c *connection, msg wire.RegisterFunction) {
	if prev, ok := h.functions[msg.ID]; ok {
		delete(prev.provider.functions, msg.ID)
		logFunctionReplaced(h.logger, c, prev.provider, msg.ID)
	}

	h.functions[msg.ID] = &registration{
		id:       msg.ID,
		provider: c,
		args:     msg.Args,
	}
	c.functions[msg.ID] = struct{}{}

	logFunctionRegistered(h.logger, c, msg.ID)
}

// call routes a call to the provider that registered the function, parking a
// lobby entry so the eventual return value can find its way back.
//
// Dispatch to the provider is fire-and-forget: the hub sets no deadline of
// its own, and relies on requesters to time out and on disconnect cleanup to
// fail abandoned entries.
func (h *Hub) call(c *connection, msg wire.Call) {
	span := h.tracer.StartSpan("")
	opentr.SetupRoute(span, msg.CallID, msg.ID)
	defer span.Finish()

	reg, ok := h.functions[msg.ID]
	if !ok {
		data, err := wire.Encode(wire.Result{
			Error:  true,
			Reason: hyperloop.ReasonFunctionNotFound,
		})
		if err == nil {
			h.deliver(c, wire.ReturnValue{CallID: msg.CallID, Data: data})
		}

		opentr.LogRequesterError(span, hyperloop.Failure{
			Reason: hyperloop.ReasonFunctionNotFound,
		})
		logCallNotFound(h.logger, c, msg.ID, msg.CallID)
		return
	}

	e := &lobbyEntry{
		callID:    msg.CallID,
		requester: c,
		provider:  reg.provider,
	}
	h.lobby[msg.CallID] = e
	c.requested[msg.CallID] = struct{}{}
	reg.provider.serving[msg.CallID] = struct{}{}

	h.deliver(reg.provider, msg)
	logCallRouted(h.logger, c, reg.provider, msg.ID, msg.CallID)
}

// returnValue routes a provider's response back to the requester recorded in
// the lobby, consuming the entry. Responses for unknown call IDs are dropped;
// this also makes delivery at-most-once, since a duplicate response finds no
// entry.
func (h *Hub) returnValue(c *connection, msg wire.ReturnValue) {
	e, ok := h.lobby[msg.CallID]
	if !ok {
		logUnknownReturn(h.logger, c, msg.CallID)
		return
	}

	h.deliver(e.requester, msg)
	h.deleteLobbyEntry(e)

	logReturnRouted(h.logger, c, e.requester, msg.CallID)
}

// listFunctions serves the function directory. It is answered synchronously
// by the hub itself; no lobby entry is created because the call never leaves
// the hub.
func (h *Hub) listFunctions(c *connection, msg wire.ListFunctions) {
	infos := make([]hyperloop.FunctionInfo, 0, len(h.functions))
	for _, reg := range h.functions {
		infos = append(infos, hyperloop.FunctionInfo{
			ID:   reg.id,
			Args: reg.args,
		})
	}

	data, err := wire.Encode(infos)
	if err != nil {
		return
	}

	h.deliver(c, wire.ReturnValue{CallID: msg.CallID, Data: data})
	logDirectoryServed(h.logger, c, len(infos))
}
