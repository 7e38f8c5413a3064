package opentr

import (
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"
)

var (
	requesterCallEvent = log.String("event", "call")

	providerRequestEvent  = log.String("event", "request")
	providerResponseEvent = log.String("event", "response")
)

// SetupCall configures span as a call-related span.
func SetupCall(
	s opentracing.Span,
	callID string,
	fn string,
) {
	s.SetOperationName(fn + " call")

	s.SetTag("subsystem", "call")
	s.SetTag("call_id", callID)
	s.SetTag("function", fn)
}

// SetupRoute configures span as a hub routing span. Call IDs are opaque at
// the hub, so the raw wire string is tagged as-is.
func SetupRoute(
	s opentracing.Span,
	callID string,
	fn string,
) {
	s.SetOperationName(fn + " route")

	s.SetTag("subsystem", "hub")
	s.SetTag("call_id", callID)
	s.SetTag("function", fn)
}

// LogRequesterCall logs information about an outgoing call to s.
func LogRequesterCall(s opentracing.Span) {
	ext.SpanKindRPCClient.Set(s)
	s.LogFields(requesterCallEvent)
}

// LogRequesterSuccess logs information about a call's successful result to s.
func LogRequesterSuccess(s opentracing.Span) {
	s.LogFields(successEvent)
}

// LogRequesterError logs information about err to s.
func LogRequesterError(s opentracing.Span, err error) {
	ext.Error.Set(s, true)

	s.LogFields(
		errorEvent,
		log.String("message", err.Error()),
	)
}

// LogProviderRequest logs information about an incoming call request to s.
func LogProviderRequest(s opentracing.Span) {
	ext.SpanKindRPCServer.Set(s)
	s.LogFields(providerRequestEvent)
}

// LogProviderResponse logs information about a handler's response to s.
func LogProviderResponse(s opentracing.Span, err error) {
	if err == nil {
		s.LogFields(providerResponseEvent)
		return
	}

	ext.Error.Set(s, true)

	s.LogFields(
		errorEvent,
		log.String("message", err.Error()),
	)
}
