package wire

import (
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/ugorji/go/codec"
)

// Kind is the wire-level discriminator carried in every message's "type"
// field.
type Kind string

// The complete set of message kinds. Dispatch switches over the Message
// union, not these strings; they exist only at the codec boundary.
const (
	KindRegister         Kind = "register"
	KindRegistered       Kind = "registered"
	KindRegisterFunction Kind = "register_function"
	KindCall             Kind = "call"
	KindReturnValue      Kind = "return_value"
	KindListFunctions    Kind = "list_functions"
	KindBroadcast        Kind = "broadcast"
)

// Message is the sealed union of Hyperloop protocol messages.
type Message interface {
	// Kind returns the wire-level discriminator for this message.
	Kind() Kind
}

// Register declares a client's advisory identity to the hub.
type Register struct {
	ID string
}

// Registered acknowledges a Register message. Version optionally reports the
// hub's release version so clients can enforce a minimum.
type Registered struct {
	Version string
}

// RegisterFunction adds or replaces an entry in the hub's function table.
type RegisterFunction struct {
	ID   string
	Args hyperloop.ArgsInfo
}

// Call requests the invocation of a registered function. The hub forwards it
// verbatim to the providing client. Trace optionally carries the requester's
// application-defined trace ID so the provider can log against it.
type Call struct {
	ID     string
	CallID string
	Trace  string
	Args   codec.Raw
}

// ReturnValue carries a call's result back through the hub. Data is opaque to
// the hub; requesting clients decode it as a Result, or as a directory
// listing for list_functions replies.
type ReturnValue struct {
	CallID string
	Data   codec.Raw
}

// ListFunctions requests the hub's function directory.
type ListFunctions struct {
	CallID string
}

// Broadcast carries a free-form payload to every connected client.
type Broadcast struct {
	Data codec.Raw
}

// Kind implementations; one per message so the union stays closed.

func (Register) Kind() Kind         { return KindRegister }
func (Registered) Kind() Kind       { return KindRegistered }
func (RegisterFunction) Kind() Kind { return KindRegisterFunction }
func (Call) Kind() Kind             { return KindCall }
func (ReturnValue) Kind() Kind      { return KindReturnValue }
func (ListFunctions) Kind() Kind    { return KindListFunctions }
func (Broadcast) Kind() Kind        { return KindBroadcast }

// Result is the payload carried in a ReturnValue for an ordinary call.
type Result struct {
	Error   bool      `json:"error"`
	Result  codec.Raw `json:"result,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
}

// FailureReason returns the failure reason however the sender spelled it.
func (r *Result) FailureReason() string {
	if r.Reason != "" {
		return r.Reason
	}

	return r.Message
}
