package models

import (
	"encoding/hex"
	"slices"
)

// Commitment is the cryptographic accumulator value published for a ring.
type Commitment [32]byte

func (c Commitment) String() string {
	return hex.EncodeToString(c[:])
}

// MarshalText renders the commitment as lowercase hex.
func (c Commitment) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RingRoot is the published commitment of a ring together with its revision.
// The revision is a logical clock: every commitment change bumps it, which
// invalidates downstream artifacts tied to the previous revision.
type RingRoot struct {
	Commitment Commitment
	Revision   uint32
}

// RingStatus tracks how many keys a ring table holds and how many of them are
// folded into the published commitment. Included never exceeds Total.
type RingStatus struct {
	Total    uint32
	Included uint32
}

// Ring is a fixed-capacity group of membership keys folded into one
// anonymity-providing commitment.
//
// Accumulator is the intermediate state the cryptography collaborator extends
// when more keys are included; nil means the next build starts from scratch.
// After a removal the accumulator is reset but the last published root is
// kept, so the next build bumps the revision instead of restarting at zero.
type Ring struct {
	Keys        []MemberKey
	Status      RingStatus
	Root        *RingRoot
	Accumulator []byte
}

// Clone returns a deep copy of the ring.
func (r *Ring) Clone() *Ring {
	c := &Ring{
		Keys:        slices.Clone(r.Keys),
		Status:      r.Status,
		Accumulator: slices.Clone(r.Accumulator),
	}
	if r.Root != nil {
		root := *r.Root
		c.Root = &root
	}
	return c
}
