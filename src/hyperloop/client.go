package hyperloop

import (
	"context"
	"encoding/json"

	"github.com/hyperloop/hyperloop-go/src/hyperloop/ident"
	"github.com/jmalloc/twelf/src/twelf"
)

// Client represents a connection to a Hyperloop hub.
//
// Any given client can operate as a requester (calling functions registered
// by other clients), a provider (registering functions of its own), or both.
type Client interface {
	// ID returns the client's unique identifier.
	ID() ident.PeerID

	// Identity returns the identity string declared to the hub when the
	// client connected. Identity is advisory; the hub uses it only for
	// logging.
	Identity() string

	// HubVersion returns the version string the hub reported when the client
	// registered, or an empty string if the hub did not report one.
	HubVersion() string

	// Register adds a function to the client's local function table and
	// registers it with the hub, making it callable by any other connected
	// client. Registering an ID that is already registered silently replaces
	// the previous handler, both locally and on the hub.
	Register(id string, info ArgsInfo, handler Handler) error

	// Call invokes a function registered on the hub by any client and blocks
	// until its result arrives, ctx is canceled, or the deadline elapses.
	//
	// If ctx does not have a deadline, the configured DefaultTimeout is
	// applied. Routing and handler failures are returned as Failure errors.
	Call(ctx context.Context, id string, args interface{}) (json.RawMessage, error)

	// Functions queries the hub's directory of registered functions.
	Functions(ctx context.Context) ([]FunctionInfo, error)

	// OnBroadcast sets the handler invoked for each broadcast payload the hub
	// delivers. A nil handler discards broadcasts.
	OnBroadcast(h BroadcastHandler)

	// Done returns a channel that is closed when the client is stopped.
	Done() <-chan struct{}

	// Err returns the error that caused the Done() channel to close, if any.
	Err() error

	// Stop disconnects the client from the hub immediately, abandoning any
	// outstanding calls.
	Stop()

	// GracefulStop disconnects the client from the hub once any outstanding
	// calls have returned and any in-flight handler invocations have
	// completed.
	GracefulStop()
}

// Handler is a callback-function invoked when a call routed by the hub
// arrives for a function the client has registered.
//
// The value it returns is delivered to the requester as the call's result. A
// returned error (or a panic) is delivered to the requester as a Failure
// instead; it never tears down the client.
type Handler func(ctx context.Context, req Request) (interface{}, error)

// Request holds information about an incoming call.
type Request struct {
	// Function is the registered function ID the requester called.
	Function string

	// CallID correlates this request with the requester's outstanding call.
	// It is an opaque token; only the requester that generated it ever
	// interprets it.
	CallID string

	// Args holds the arguments exactly as the requester sent them.
	Args json.RawMessage

	// Logger is the providing client's logger, injected so handlers can log
	// in the same voice as the client that hosts them.
	Logger twelf.Logger
}

// Bind unpacks the request arguments into v.
func (r Request) Bind(v interface{}) error {
	if len(r.Args) == 0 {
		return nil
	}

	return json.Unmarshal(r.Args, v)
}

// BroadcastHandler is a callback-function invoked for each broadcast payload
// delivered by the hub.
type BroadcastHandler func(payload json.RawMessage)

// ArgsInfo describes a registered function's parameters, keyed by parameter
// name. It is propagated verbatim to the hub's function directory.
type ArgsInfo map[string]string

// FunctionInfo describes one entry in the hub's function directory.
type FunctionInfo struct {
	ID   string   `json:"id"`
	Args ArgsInfo `json:"args_info,omitempty"`
}
