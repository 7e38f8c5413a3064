package hyperloop

import (
	"time"

	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// DefaultConfig is the default client configuration.
var DefaultConfig Config

// Config describes client configuration.
type Config struct {
	// DefaultTimeout specifies the maximum amount of time to wait for a call
	// to return. It is used if the context passed to Client.Call() does not
	// already have a deadline.
	DefaultTimeout time.Duration

	// Logger defines the target for all of the client's logs.
	Logger twelf.Logger

	// Tracer is the OpenTracing tracer used to track calls as they travel
	// through the network.
	Tracer opentracing.Tracer

	// PingInterval specifies how often a keep-alive ping is written to the
	// socket when the connection is otherwise idle.
	PingInterval time.Duration
}

func init() {
	DefaultConfig = Config{
		DefaultTimeout: 5 * time.Second,
		Logger:         &twelf.StandardLogger{},
		Tracer:         opentracing.NoopTracer{},
		PingInterval:   30 * time.Second,
	}
}
