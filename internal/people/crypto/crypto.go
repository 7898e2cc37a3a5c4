// Package crypto defines the narrow interface to the ring-membership
// cryptography collaborator and a development implementation of it.
//
// The core assumes commitment extension is append-efficient but not
// deletion-efficient: removing a key from a ring forces a rebuild from a
// fresh accumulator. Proof creation and verification live outside the core
// and are keyed by a (ring, revision, context) tuple.
package crypto

import "personring/internal/people/models"

// Ring is the cryptography collaborator injected into the people service.
// Implementations must be deterministic: extending equal accumulators with
// equal key batches yields equal accumulators.
type Ring interface {
	// DeriveKey derives a public membership key from a secret.
	DeriveKey(secret []byte) models.MemberKey

	// StartAccumulator returns a fresh, empty accumulator state.
	StartAccumulator() []byte

	// ExtendAccumulator folds the given keys, in order, into the accumulator
	// and returns the new intermediate state. The input state is not mutated.
	ExtendAccumulator(acc []byte, keys []models.MemberKey) ([]byte, error)

	// FinishAccumulator produces the publishable commitment for the current
	// accumulator state.
	FinishAccumulator(acc []byte) models.Commitment
}
