package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashNeverStoresPlaintext(t *testing.T) {
	h := NewBcryptHasher(MinCost)

	for _, pw := range []string{"secret1", "correct horse battery", "p@ssw0rd!!"} {
		hash, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, hash)
		assert.NoError(t, h.Compare(hash, pw))
		assert.ErrorIs(t, h.Compare(hash, pw+"x"), ErrMismatch)
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	_, err := NewBcryptHasher(MinCost).Hash("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestCostFloor(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, MinCost, cost)
}
