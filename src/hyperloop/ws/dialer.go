package ws

import (
	"context"

	"github.com/gorilla/websocket"
	version "github.com/hashicorp/go-version"
	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/ident"
	"github.com/hyperloop/hyperloop-go/src/internal/service"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
	"github.com/jmalloc/twelf/src/twelf"
	opentracing "github.com/opentracing/opentracing-go"
)

// Dialer connects to a Hyperloop hub, establishing the client's identity on
// the network.
type Dialer struct {
	// Identity is the advisory identity declared to the hub. If empty, the
	// generated peer ID is used. Identities need not be unique; the hub uses
	// them for logging only.
	Identity string

	// MinimumVersion, when non-empty, is a version constraint (such as
	// ">= 1.2.0") that the hub's reported version must satisfy. Dialing a hub
	// that reports no version, or one outside the constraint, fails.
	MinimumVersion string

	// Handshake configures the underlying websocket handshake.
	Handshake websocket.Dialer
}

// Dial connects to a Hyperloop hub using the default dialer and
// configuration.
func Dial(url string) (hyperloop.Client, error) {
	d := Dialer{}
	return d.Dial(context.Background(), url, hyperloop.DefaultConfig)
}

// DialConfig connects to a Hyperloop hub using the default dialer and the
// specified context and configuration.
func DialConfig(ctx context.Context, url string, cfg hyperloop.Config) (hyperloop.Client, error) {
	d := Dialer{}
	return d.Dial(ctx, url, cfg)
}

// Dial connects to a Hyperloop hub using the specified context and
// configuration.
func (d *Dialer) Dial(ctx context.Context, url string, cfg hyperloop.Config) (hyperloop.Client, error) {
	cfg = withDefaults(cfg)

	var constraint version.Constraints
	if d.MinimumVersion != "" {
		var err error
		constraint, err = version.NewConstraint(d.MinimumVersion)
		if err != nil {
			return nil, err
		}
	}

	peerID := ident.NewPeerID()

	identity := d.Identity
	if identity == "" {
		identity = peerID.String()
	}

	sock, _, err := d.Handshake.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := newClient(peerID, identity, sock, cfg)

	defer func() {
		// if an error occurs after this point the partially-started client
		// must not leak
		if err != nil {
			c.Stop()
			<-c.Done()
		}
	}()

	if err = c.establish(ctx, constraint); err != nil {
		return nil, err
	}

	cfg.Logger.Log(
		"%s connected to '%s' as '%s'",
		peerID.ShortString(),
		url,
		identity,
	)

	return c, nil
}

// establish declares the client's identity and blocks until the hub
// acknowledges it, then enforces the version constraint, if any.
func (c *client) establish(ctx context.Context, constraint version.Constraints) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}

	if err := c.send(wire.Register{ID: c.identity}); err != nil {
		return err
	}

	select {
	case <-c.registered:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.sm.Finalized:
		if err := c.Err(); err != nil {
			return err
		}
		return service.ErrStopped
	}

	if len(constraint) == 0 {
		return nil
	}

	reported := c.HubVersion()
	if reported == "" {
		return hyperloop.ProtocolError("hub did not report a version")
	}

	v, err := version.NewVersion(reported)
	if err != nil {
		return hyperloop.ProtocolError("hub reported a malformed version: " + err.Error())
	}

	if !constraint.Check(v) {
		return hyperloop.ProtocolError(
			"hub version " + reported + " does not satisfy '" + constraint.String() + "'",
		)
	}

	return nil
}

// withDefaults fills in any zero-valued configuration from DefaultConfig.
func withDefaults(cfg hyperloop.Config) hyperloop.Config {
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = hyperloop.DefaultConfig.DefaultTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = &twelf.StandardLogger{}
	}

	if cfg.Tracer == nil {
		cfg.Tracer = opentracing.NoopTracer{}
	}

	if cfg.PingInterval == 0 {
		cfg.PingInterval = hyperloop.DefaultConfig.PingInterval
	}

	return cfg
}
