package ident

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PeerID uniquely identifies a client process within a Hyperloop network.
// Peer IDs are designed to be somewhat human-readable.
type PeerID struct {
	// Clock is a time-based portion of the ID. It helps uniquely identify
	// peer IDs over longer time-scales, such as when looking back through
	// logs.
	Clock uint64

	// Rand is a random number that distinguishes peers created during the
	// same second.
	Rand uint16
}

// NewPeerID creates a new peer ID. Uniqueness is practical, not guaranteed;
// the hub never keys any routing state by peer identity.
func NewPeerID() PeerID {
	return PeerID{
		uint64(time.Now().Unix()),
		uint16(rand.Intn(math.MaxUint16-1)) + 1,
	}
}

// Validate returns nil if the ID is valid.
func (id PeerID) Validate() error {
	if id.Clock != 0 && id.Rand != 0 {
		return nil
	}

	return fmt.Errorf("peer ID %s is invalid", id)
}

// ShortString returns a string representation of the "Rand" component.
func (id PeerID) ShortString() string {
	return fmt.Sprintf("%04X", id.Rand)
}

func (id PeerID) String() string {
	return fmt.Sprintf("%X-%s", id.Clock, id.ShortString())
}
