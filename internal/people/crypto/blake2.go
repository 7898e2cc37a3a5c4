package crypto

import (
	"golang.org/x/crypto/blake2b"

	"personring/internal/people/models"
)

// domain separation prefixes for the three accumulator operations.
var (
	tagSeed   = []byte("personring/key/v1")
	tagExtend = []byte("personring/acc/v1")
	tagFinish = []byte("personring/root/v1")
)

// Blake2Ring is a development implementation of the Ring collaborator built
// on chained blake2b-256 hashing. Extension is O(batch): each key is folded
// into the running state with one hash.
type Blake2Ring struct{}

// NewBlake2Ring returns the development ring cryptography.
func NewBlake2Ring() *Blake2Ring { return &Blake2Ring{} }

func (*Blake2Ring) DeriveKey(secret []byte) models.MemberKey {
	h, _ := blake2b.New256(nil)
	h.Write(tagSeed)
	h.Write(secret)
	var key models.MemberKey
	h.Sum(key[:0])
	return key
}

func (*Blake2Ring) StartAccumulator() []byte {
	h, _ := blake2b.New256(nil)
	h.Write(tagExtend)
	return h.Sum(nil)
}

func (*Blake2Ring) ExtendAccumulator(acc []byte, keys []models.MemberKey) ([]byte, error) {
	state := make([]byte, len(acc))
	copy(state, acc)
	for _, key := range keys {
		h, _ := blake2b.New256(nil)
		h.Write(state)
		h.Write(key[:])
		state = h.Sum(state[:0])
	}
	return state, nil
}

func (*Blake2Ring) FinishAccumulator(acc []byte) models.Commitment {
	h, _ := blake2b.New256(nil)
	h.Write(tagFinish)
	h.Write(acc)
	var c models.Commitment
	h.Sum(c[:0])
	return c
}
