package cache

import (
	"time"

	"github.com/jmalloc/twelf/src/twelf"
)

func logHit(logger twelf.Logger, fn string) {
	logger.Debug(
		"cache %s hit",
		fn,
	)
}

func logStored(logger twelf.Logger, fn string, ttl time.Duration) {
	logger.Debug(
		"cache %s miss, stored result for %s",
		fn,
		ttl,
	)
}

func logNoStore(logger twelf.Logger, fn string) {
	logger.Debug(
		"cache %s miss, no matching rule, result not stored",
		fn,
	)
}

func logStoreError(logger twelf.Logger, fn string, err error) {
	logger.Log(
		"cache %s store error: %s",
		fn,
		err,
	)
}

func logSweeperStart(logger twelf.Logger, interval time.Duration) {
	logger.Debug(
		"cache sweeper started, sweeping every %s",
		interval,
	)
}

func logSwept(logger twelf.Logger, count int) {
	logger.Debug(
		"cache sweeper removed %d expired entries",
		count,
	)
}

func logSweepError(logger twelf.Logger, err error) {
	logger.Log(
		"cache sweep error: %s",
		err,
	)
}

func logSweeperStop(logger twelf.Logger, err error) {
	if err != nil {
		logger.Debug(
			"cache sweeper stopped: %s",
			err,
		)
	} else {
		logger.Debug(
			"cache sweeper stopped",
		)
	}
}
