package cache

import (
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("entries")
	expiryBucket  = []byte("expiry")
)

// BoltStore is a Store backed by a bbolt database file.
//
// Entries live in the "entries" bucket as an 8-byte big-endian expiry
// timestamp followed by the payload. The "expiry" bucket is an index keyed
// by timestamp-then-entry-key, which lets the sweeper walk expired entries
// in order and stop at the first live one.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if necessary) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(expiryBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (value []byte, ok bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(key))
		if v == nil {
			return nil
		}

		expiresAt := int64(binary.BigEndian.Uint64(v))
		if time.Now().UnixNano() >= expiresAt {
			return nil
		}

		value = append([]byte(nil), v[8:]...)
		ok = true

		return nil
	})

	return
}

func (s *BoltStore) Set(key string, value []byte, expiresAt time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		expiry := tx.Bucket(expiryBucket)
		k := []byte(key)

		if prev := entries.Get(k); prev != nil {
			if err := expiry.Delete(expiryKey(prev[:8], k)); err != nil {
				return err
			}
		}

		v := make([]byte, 8+len(value))
		binary.BigEndian.PutUint64(v, uint64(expiresAt.UnixNano()))
		copy(v[8:], value)

		if err := entries.Put(k, v); err != nil {
			return err
		}

		return expiry.Put(expiryKey(v[:8], k), nil)
	})
}

func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		k := []byte(key)

		v := entries.Get(k)
		if v == nil {
			return nil
		}

		if err := tx.Bucket(expiryBucket).Delete(expiryKey(v[:8], k)); err != nil {
			return err
		}

		return entries.Delete(k)
	})
}

func (s *BoltStore) DeleteExpired(now time.Time) (count int, err error) {
	cutoff := uint64(now.UnixNano())

	err = s.db.Update(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		cur := tx.Bucket(expiryBucket).Cursor()

		for k, _ := cur.First(); k != nil; k, _ = cur.First() {
			if binary.BigEndian.Uint64(k[:8]) > cutoff {
				return nil
			}

			if err := entries.Delete(k[8:]); err != nil {
				return err
			}

			if err := cur.Delete(); err != nil {
				return err
			}

			count++
		}

		return nil
	})

	return
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func expiryKey(stamp, key []byte) []byte {
	k := make([]byte, 8+len(key))
	copy(k, stamp)
	copy(k[8:], key)

	return k
}
