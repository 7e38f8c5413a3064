package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hyperloop/hyperloop-go/src/internal/service"
	"github.com/jmalloc/twelf/src/twelf"
)

// DefaultSweepInterval is the interval between sweeps of expired entries
// used when no interval is configured explicitly.
const DefaultSweepInterval = 1 * time.Minute

// Caller invokes a remote function. hyperloop.Client satisfies this
// interface.
type Caller interface {
	Call(ctx context.Context, fn string, args interface{}) (json.RawMessage, error)
}

// CallResult is the outcome of a cached call.
type CallResult struct {
	// Value is the function's return value, as produced by the provider or
	// as previously stored.
	Value json.RawMessage

	// Hit is true if Value was served from the cache without invoking the
	// remote function.
	Hit bool
}

// Stats is a snapshot of a cache's counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Stored uint64
	Swept  uint64
}

// Cache serves call results from a Store when a prior result is still fresh,
// calling through to the remote function otherwise.
//
// Results are only ever stored when a TTL rule allows it, so functions with
// no rules pass through untouched. A background sweeper removes entries once
// they expire; until then an expired entry simply stops being served.
type Cache struct {
	service.Service

	sm       *service.StateMachine
	caller   Caller
	store    Store
	rules    RuleSet
	logger   twelf.Logger
	interval time.Duration

	hits   uint64
	misses uint64
	stored uint64
	swept  uint64
}

// New returns a cache that serves calls made through caller from store,
// storing results according to rules. The returned cache's sweeper is
// already running; call Stop to halt it.
func New(caller Caller, store Store, rules RuleSet, opts ...Option) *Cache {
	c := &Cache{
		caller:   caller,
		store:    store,
		rules:    rules,
		logger:   &twelf.StandardLogger{},
		interval: DefaultSweepInterval,
	}

	for _, o := range opts {
		o(c)
	}

	c.sm = service.NewStateMachine(c.run, c.finalize)
	c.Service = c.sm

	go c.sm.Run()

	return c
}

// Option alters the behavior of a cache.
type Option func(*Cache)

// Logger sets the logger used to record cache activity.
func Logger(l twelf.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// SweepInterval sets the interval at which expired entries are removed.
func SweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.interval = d
	}
}

// Call invokes fn with args, serving the result from the cache when a fresh
// entry exists for the same function and canonically equal arguments.
func (c *Cache) Call(ctx context.Context, fn string, args interface{}) (CallResult, error) {
	subj, err := subject(args)
	if err != nil {
		return CallResult{}, err
	}

	key := storageKey(fn, subj)

	if value, ok, err := c.store.Get(key); err != nil {
		logStoreError(c.logger, fn, err)
	} else if ok {
		atomic.AddUint64(&c.hits, 1)
		logHit(c.logger, fn)

		return CallResult{Value: value, Hit: true}, nil
	}

	atomic.AddUint64(&c.misses, 1)

	value, err := c.caller.Call(ctx, fn, args)
	if err != nil {
		return CallResult{}, err
	}

	if ttl, ok := c.rules.TTL(fn, subj); ok {
		if err := c.store.Set(key, value, time.Now().Add(ttl)); err != nil {
			logStoreError(c.logger, fn, err)
		} else {
			atomic.AddUint64(&c.stored, 1)
			logStored(c.logger, fn, ttl)
		}
	} else {
		logNoStore(c.logger, fn)
	}

	return CallResult{Value: value}, nil
}

// Invalidate removes the entry for fn called with args, if one exists.
func (c *Cache) Invalidate(fn string, args interface{}) error {
	subj, err := subject(args)
	if err != nil {
		return err
	}

	return c.store.Delete(storageKey(fn, subj))
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
		Stored: atomic.LoadUint64(&c.stored),
		Swept:  atomic.LoadUint64(&c.swept),
	}
}

func (c *Cache) run() (service.State, error) {
	logSweeperStart(c.logger, c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()

		case cmd := <-c.sm.Commands:
			c.sm.Execute(cmd)

		case <-c.sm.Graceful:
			return nil, nil

		case <-c.sm.Forceful:
			return nil, nil
		}
	}
}

func (c *Cache) sweep() {
	n, err := c.store.DeleteExpired(time.Now())
	if err != nil {
		logSweepError(c.logger, err)
		return
	}

	if n > 0 {
		atomic.AddUint64(&c.swept, uint64(n))
		logSwept(c.logger, n)
	}
}

func (c *Cache) finalize(err error) error {
	logSweeperStop(c.logger, err)
	return err
}
