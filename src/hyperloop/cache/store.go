package cache

import (
	"time"
)

// Store is a persistent key/value store with per-entry expiry.
type Store interface {
	// Get returns the value stored under key. ok is false if there is no
	// entry, or if the entry has expired. Expired entries are left in place
	// for the sweeper to remove.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any existing entry. The entry
	// is served until expiresAt, after which it is eligible for sweeping.
	Set(key string, value []byte, expiresAt time.Time) error

	// Delete removes the entry stored under key, if any.
	Delete(key string) error

	// DeleteExpired removes every entry whose expiry is at or before now and
	// returns the number of entries removed. Live entries are never touched.
	DeleteExpired(now time.Time) (int, error)

	// Close releases the store's resources.
	Close() error
}
