package ws

import (
	"time"

	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/hyperloop/hyperloop-go/src/hyperloop/ident"
	"github.com/hyperloop/hyperloop-go/src/internal/wire"
	"github.com/jmalloc/twelf/src/twelf"
)

func logFunctionRegistered(
	logger twelf.Logger,
	peerID ident.PeerID,
	id string,
) {
	logger.Debug(
		"%s registered function '%s'",
		peerID.ShortString(),
		id,
	)
}

func logCallBegin(
	logger twelf.Logger,
	peerID ident.PeerID,
	fn string,
	callID string,
	traceID string,
) {
	if traceID == "" {
		traceID = callID
	}

	logger.Debug(
		"%s began '%s' call %s [%s]",
		peerID.ShortString(),
		fn,
		callID,
		traceID,
	)
}

func logCallEnd(
	logger twelf.Logger,
	peerID ident.PeerID,
	fn string,
	callID string,
	traceID string,
	err error,
) {
	if traceID == "" {
		traceID = callID
	}

	switch e := err.(type) {
	case nil:
		logger.Debug(
			"%s completed '%s' call %s successfully [%s]",
			peerID.ShortString(),
			fn,
			callID,
			traceID,
		)
	case hyperloop.Failure:
		logger.Debug(
			"%s completed '%s' call %s with '%s' failure [%s]",
			peerID.ShortString(),
			fn,
			callID,
			e.Reason,
			traceID,
		)
	default:
		logger.Debug(
			"%s completed '%s' call %s with error: %s [%s]",
			peerID.ShortString(),
			fn,
			callID,
			err,
			traceID,
		)
	}
}

func logRequestBegin(
	logger twelf.Logger,
	peerID ident.PeerID,
	fn string,
	callID string,
) {
	logger.Debug(
		"%s began handling '%s' request %s",
		peerID.ShortString(),
		fn,
		callID,
	)
}

func logRequestEnd(
	logger twelf.Logger,
	peerID ident.PeerID,
	fn string,
	callID string,
	elapsed time.Duration,
	err error,
) {
	if err == nil {
		logger.Debug(
			"%s handled '%s' request %s successfully (%dms)",
			peerID.ShortString(),
			fn,
			callID,
			elapsed/time.Millisecond,
		)
	} else {
		logger.Log(
			"%s handled '%s' request %s with error: %s (%dms)",
			peerID.ShortString(),
			fn,
			callID,
			err,
			elapsed/time.Millisecond,
		)
	}
}

func logNoHandler(
	logger twelf.Logger,
	peerID ident.PeerID,
	fn string,
	callID string,
) {
	logger.Debug(
		"%s rejected '%s' request %s, function is not in the local table",
		peerID.ShortString(),
		fn,
		callID,
	)
}

func logUnknownReturn(
	logger twelf.Logger,
	peerID ident.PeerID,
	callID string,
) {
	logger.Debug(
		"%s ignored return value for %s, call is not pending",
		peerID.ShortString(),
		callID,
	)
}

func logBroadcastReceived(logger twelf.Logger, peerID ident.PeerID) {
	logger.Debug(
		"%s received a broadcast payload",
		peerID.ShortString(),
	)
}

func logIgnoredMessage(
	logger twelf.Logger,
	peerID ident.PeerID,
	m wire.Message,
) {
	logger.Debug(
		"%s ignored unexpected '%s' message",
		peerID.ShortString(),
		m.Kind(),
	)
}

func logProtocolError(
	logger twelf.Logger,
	peerID ident.PeerID,
	err error,
) {
	logger.Log(
		"%s received an unintelligible message: %s",
		peerID.ShortString(),
		err,
	)
}

func logClientStopping(
	logger twelf.Logger,
	peerID ident.PeerID,
	pending int,
	executing uint,
) {
	logger.Debug(
		"%s is stopping gracefully (pending calls: %d, executing handlers: %d)",
		peerID.ShortString(),
		pending,
		executing,
	)
}

func logClientStop(
	logger twelf.Logger,
	peerID ident.PeerID,
	err error,
) {
	if err == nil {
		logger.Debug(
			"%s disconnected",
			peerID.ShortString(),
		)
	} else {
		logger.Debug(
			"%s disconnected: %s",
			peerID.ShortString(),
			err,
		)
	}
}
