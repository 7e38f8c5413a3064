package trace

import "context"

// With returns a new context derived from parent that includes an
// application-defined "trace ID" value.
//
// Any calls made with the returned context carry the trace ID on the wire;
// it appears in span tags on both ends and is available via Get from the
// context passed to the providing handler. If a call is made with a context
// that does not contain a trace ID, the call ID is used in log output
// instead.
//
// The trace ID is rendered surrounded by square brackets in log output.
func With(parent context.Context, t string) context.Context {
	return context.WithValue(parent, key, t)
}

// Get returns the trace identifier from ctx, or an empty string if none is
// present.
func Get(ctx context.Context) string {
	str, _ := ctx.Value(key).(string)
	return str
}

type keyType struct{}

var key keyType
