// Package models holds the core types of the personhood registry: durable
// person identifiers, membership keys, ring bookkeeping and the mutation
// session state machine.
package models

import (
	"encoding/hex"
	"fmt"
	"math"
)

// PersonalID is the durable identifier of a recognized person. IDs are
// allocated from a monotonic counter and never reused while a record exists.
type PersonalID uint64

// RingIndex addresses a ring.
type RingIndex uint32

// PageIndex addresses an onboarding queue page. The index space wraps so the
// queue can run indefinitely without renumbering old pages.
type PageIndex uint32

// Next returns the page index following p, wrapping to zero at the end of the
// index space.
func (p PageIndex) Next() PageIndex {
	if p == math.MaxUint32 {
		return 0
	}
	return p + 1
}

// MemberKeySize is the size of an opaque membership credential in bytes.
const MemberKeySize = 32

// MemberKey is an opaque fixed-size public membership credential.
type MemberKey [MemberKeySize]byte

func (k MemberKey) String() string {
	return hex.EncodeToString(k[:])
}

// MarshalText renders the key as lowercase hex for JSON transport.
func (k MemberKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a hex-encoded key.
func (k *MemberKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMemberKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseMemberKey parses a hex-encoded member key.
func ParseMemberKey(s string) (MemberKey, error) {
	var k MemberKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("member key is not valid hex: %w", err)
	}
	if len(raw) != MemberKeySize {
		return k, fmt.Errorf("member key must be %d bytes, got %d", MemberKeySize, len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// PersonRecord is the authoritative record of one confirmed person.
type PersonRecord struct {
	Key      MemberKey
	Position RingPosition
	Account  *string
}

// Clone returns a deep copy of the record.
func (r *PersonRecord) Clone() *PersonRecord {
	c := *r
	if r.Account != nil {
		account := *r.Account
		c.Account = &account
	}
	return &c
}
