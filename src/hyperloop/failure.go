package hyperloop

// Well-known failure reasons produced by the hub and by providing clients.
const (
	// ReasonFunctionNotFound is reported by the hub when a call names a
	// function ID that no connected client has registered.
	ReasonFunctionNotFound = "function_not_found"

	// ReasonNoEndpoint is reported by a providing client when it receives a
	// call for a function ID that is not in its local function table.
	ReasonNoEndpoint = "endpoint_reported_no_exist"

	// ReasonProviderDisconnected is reported by the hub when the provider of
	// an in-flight call disconnects before responding.
	ReasonProviderDisconnected = "provider_disconnected"
)

// Failure is an error reported through the normal return channel of a call,
// as opposed to a local error that occurred when attempting to send it.
//
// Failures are protocol-level data; receiving one never indicates a transport
// problem. Calling code can branch on the failure reason.
type Failure struct {
	// Reason identifies the failure. It is either one of the well-known
	// reasons above, or an application-defined string produced by the remote
	// handler.
	Reason string
}

func (err Failure) Error() string {
	if err.Reason == "" {
		return "unknown failure"
	}

	return err.Reason
}

// IsFailure returns true if err is a Failure.
func IsFailure(err error) bool {
	_, ok := err.(Failure)
	return ok
}

// IsFailureReason returns true if err is a Failure with the reason r.
func IsFailureReason(r string, err error) bool {
	if r == "" {
		panic("failure reason is empty")
	}

	f, _ := err.(Failure)
	return f.Reason == r
}

// IsFunctionNotFound returns true if err indicates that no provider has
// registered the called function.
func IsFunctionNotFound(err error) bool {
	return IsFailureReason(ReasonFunctionNotFound, err)
}

// ProtocolError indicates that a malformed or unexpected message was received
// from the network.
type ProtocolError string

func (err ProtocolError) Error() string {
	if err == "" {
		return "unexpected protocol error"
	}

	return string(err)
}
