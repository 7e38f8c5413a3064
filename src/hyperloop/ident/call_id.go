package ident

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"time"
)

// CallID uniquely identifies a single call while it is outstanding. It
// correlates a return_value message with the call that produced it, on both
// the hub and the requesting client.
type CallID struct {
	// Clock is the millisecond timestamp at which the call was issued.
	Clock uint64

	// Rand distinguishes calls issued during the same millisecond.
	Rand uint32
}

// NewCallID generates a call ID for a call issued now.
//
// Uniqueness is practical rather than cryptographic; it only needs to hold
// among calls outstanding at the same time.
func NewCallID() CallID {
	return CallID{
		uint64(time.Now().UnixMilli()),
		rand.Uint32() | 1, // never zero
	}
}

// ParseCallID parses a string representation of a call ID, as rendered by
// String().
func ParseCallID(str string) (id CallID, err error) {
	matches := callIDPattern.FindStringSubmatch(str)

	if len(matches) != 0 {
		var value uint64

		value, err = strconv.ParseUint(matches[1], 16, 64)
		if err != nil {
			return
		}
		id.Clock = value

		value, err = strconv.ParseUint(matches[2], 16, 32)
		if err != nil {
			return
		}
		id.Rand = uint32(value)
	}

	err = id.Validate()
	return
}

// Validate returns nil if the ID is valid.
func (id CallID) Validate() error {
	if id.Clock != 0 && id.Rand != 0 {
		return nil
	}

	return fmt.Errorf("call ID %s is invalid", id)
}

// ShortString returns a string representation of the "Rand" component.
func (id CallID) ShortString() string {
	return fmt.Sprintf("%08X", id.Rand)
}

func (id CallID) String() string {
	return fmt.Sprintf("%X-%s", id.Clock, id.ShortString())
}

var callIDPattern = regexp.MustCompile(`^([0-9A-F]+)\-([0-9A-F]+)$`)
