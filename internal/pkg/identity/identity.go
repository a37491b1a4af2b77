package identity

import (
	"crypto/sha256"

	"github.com/gofrs/uuid/v5"
)

// DeriveID maps an arbitrary seed to a stable identifier, so independent
// agents that know the same human-readable name agree on the same id without
// contacting each other. A seed that is already an id literal is passed
// through unchanged, any other seed is hashed. No randomness, no I/O.
func DeriveID(seed string) uuid.UUID {
	if id, err := uuid.FromString(seed); err == nil {
		return id
	}

	digest := sha256.Sum256([]byte(seed))
	id := uuid.UUID{}
	copy(id[:], digest[:uuid.Size])
	return id
}

// DeriveScopedID derives an identifier from the seed and mixes in the parent
// scope, so the same seed under two different parents yields two different,
// still deterministic, results. The mixing is a byte-wise XOR and therefore
// reversible.
func DeriveScopedID(seed string, parent uuid.UUID) uuid.UUID {
	id := DeriveID(seed)
	for i := range id {
		id[i] ^= parent[i]
	}
	return id
}
