package identity

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
)

func TestDeriveIDDeterministic(t *testing.T) {
	assert.Equal(t, DeriveID("example"), DeriveID("example"))
	assert.NotEqual(t, DeriveID("example"), DeriveID("other"))
}

func TestDeriveIDPassThrough(t *testing.T) {
	id := uuid.Must(uuid.FromString("5594a7b1-363e-4953-a96b-cbca5aaa86f7"))
	assert.Equal(t, id, DeriveID(id.String()))
}

func TestDeriveScopedID(t *testing.T) {
	parentA := DeriveID("parent-a")
	parentB := DeriveID("parent-b")
	assert.Equal(t, DeriveScopedID("example", parentA), DeriveScopedID("example", parentA))
	assert.NotEqual(t, DeriveScopedID("example", parentA), DeriveScopedID("example", parentB))
	assert.NotEqual(t, DeriveID("example"), DeriveScopedID("example", parentA))
}

func TestDeriveScopedIDReversible(t *testing.T) {
	parent := DeriveID("parent")
	scoped := DeriveScopedID("example", parent)
	for i := range scoped {
		scoped[i] ^= parent[i]
	}
	assert.Equal(t, DeriveID("example"), scoped)
}
