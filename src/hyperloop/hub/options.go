package hub

import (
	"time"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// DefaultVersion is the version the hub reports to registering clients when
// none is specified.
const DefaultVersion = "1.0.0"

// DefaultPingInterval is the keep-alive interval used when none is specified.
const DefaultPingInterval = 30 * time.Second

// Option is a function that applies a configuration change to a hub.
type Option func(h *Hub)

// Logger returns an Option that specifies the target for all of the hub's
// logs.
func Logger(l twelf.Logger) Option {
	if l == nil {
		panic("logger must not be nil")
	}

	return func(h *Hub) {
		h.logger = l
	}
}

// Tracer returns an Option that specifies an OpenTracing tracer used to track
// calls as they are routed through the hub.
func Tracer(t opentracing.Tracer) Option {
	if t == nil {
		panic("tracer must not be nil")
	}

	return func(h *Hub) {
		h.tracer = t
	}
}

// Version returns an Option that specifies the version string reported to
// clients when they register. Clients may refuse to talk to hubs below a
// minimum version.
func Version(v string) Option {
	return func(h *Hub) {
		h.version = v
	}
}

// PingInterval returns an Option that specifies how often keep-alive pings
// are written to otherwise-idle connections.
func PingInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.pingInterval = d
	}
}

func applyOptions(h *Hub, opts []Option) {
	h.logger = &twelf.StandardLogger{}
	h.tracer = opentracing.NoopTracer{}
	h.version = DefaultVersion
	h.pingInterval = DefaultPingInterval

	for _, o := range opts {
		o(h)
	}
}
