package hub

import (
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
	"github.com/jmalloc/twelf/src/twelf"
)

func logHubStart(logger twelf.Logger, version string) {
	logger.Debug(
		"hub started (version: %s)",
		version,
	)
}

func logHubStopping(logger twelf.Logger, pending int) {
	logger.Debug(
		"hub is stopping gracefully (in-flight calls: %d)",
		pending,
	)
}

func logHubStop(logger twelf.Logger, err error) {
	if err == nil {
		logger.Debug("hub stopped")
	} else {
		logger.Debug("hub stopped: %s", err)
	}
}

func logUpgradeFailed(logger twelf.Logger, err error) {
	logger.Log(
		"hub refused a connection, websocket upgrade failed: %s",
		err,
	)
}

func logAccepted(logger twelf.Logger, c *connection, total int) {
	logger.Log(
		"%s connected (connected clients: %d)",
		c.name(),
		total,
	)
}

func logClosed(logger twelf.Logger, c *connection, total int) {
	logger.Log(
		"%s disconnected (connected clients: %d)",
		c.name(),
		total,
	)
}

func logRegistered(logger twelf.Logger, c *connection) {
	logger.Debug(
		"%s registered as '%s'",
		c.id[:8],
		c.identity,
	)
}

func logFunctionRegistered(logger twelf.Logger, c *connection, id string) {
	logger.Debug(
		"%s registered function '%s'",
		c.name(),
		id,
	)
}

func logFunctionReplaced(
	logger twelf.Logger,
	c *connection,
	prev *connection,
	id string,
) {
	if c == prev {
		return
	}

	logger.Debug(
		"%s took over function '%s' from %s",
		c.name(),
		id,
		prev.name(),
	)
}

func logCallRouted(
	logger twelf.Logger,
	requester *connection,
	provider *connection,
	fn string,
	callID string,
) {
	logger.Debug(
		"%s routed '%s' call from %s to %s",
		callID,
		fn,
		requester.name(),
		provider.name(),
	)
}

func logCallNotFound(
	logger twelf.Logger,
	requester *connection,
	fn string,
	callID string,
) {
	logger.Debug(
		"%s rejected '%s' call from %s, function is not registered",
		callID,
		fn,
		requester.name(),
	)
}

func logReturnRouted(
	logger twelf.Logger,
	provider *connection,
	requester *connection,
	callID string,
) {
	logger.Debug(
		"%s routed return value from %s to %s",
		callID,
		provider.name(),
		requester.name(),
	)
}

func logUnknownReturn(logger twelf.Logger, c *connection, callID string) {
	logger.Debug(
		"%s ignored return value from %s, call is not in the lobby",
		callID,
		c.name(),
	)
}

func logProviderDisconnected(logger twelf.Logger, c *connection, callID string) {
	logger.Debug(
		"%s failed, provider %s disconnected before responding",
		callID,
		c.name(),
	)
}

func logDirectoryServed(logger twelf.Logger, c *connection, n int) {
	logger.Debug(
		"%s served function directory (%d functions)",
		c.name(),
		n,
	)
}

func logBroadcast(logger twelf.Logger, c *connection) {
	logger.Debug(
		"%s broadcast a payload to all connected clients",
		c.name(),
	)
}

func logProtocolError(logger twelf.Logger, c *connection, err error) {
	logger.Log(
		"%s sent an unintelligible message: %s",
		c.name(),
		err,
	)
}

func logIgnoredMessage(logger twelf.Logger, c *connection, m wire.Message) {
	logger.Debug(
		"%s ignored unexpected '%s' message",
		c.name(),
		m.Kind(),
	)
}

func logSlowConsumer(logger twelf.Logger, c *connection) {
	logger.Log(
		"%s disconnected, send buffer overflowed",
		c.name(),
	)
}

func logDeliveryFailed(logger twelf.Logger, c *connection, err error) {
	logger.Log(
		"%s delivery failed: %s",
		c.name(),
		err,
	)
}
