package cache

import (
	"github.com/ugorji/go/codec"
)

// keyHandle serializes arguments canonically so that maps with identical
// contents produce identical keys regardless of insertion order.
var keyHandle codec.JsonHandle

func init() {
	keyHandle.Canonical = true
}

// subject returns the canonical serialization of a call's arguments. It is
// both the string that TTL rule patterns are matched against, and the
// argument half of the storage key.
func subject(args interface{}) (string, error) {
	var buf []byte

	enc := codec.NewEncoderBytes(&buf, &keyHandle)
	if err := enc.Encode(args); err != nil {
		return "", err
	}

	return string(buf), nil
}

// storageKey derives the key a call's result is stored under. Two calls share
// a key if and only if they name the same function with canonically equal
// arguments.
func storageKey(fn, subj string) string {
	return fn + "\x00" + subj
}
