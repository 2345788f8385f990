package auth_test

import (
	"strings"
	"testing"

	"github.com/campuskit/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("hash verifies against the original password", func(t *testing.T) {
		hash, err := auth.HashPassword("some-password-123")
		require.NoError(t, err)

		assert.NotEqual(t, "some-password-123", hash)
		assert.True(t, strings.HasPrefix(hash, "$2"))
		assert.NoError(t, auth.ComparePasswordAndHash("some-password-123", hash))
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := auth.HashPassword("")
		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("correct-password")
	require.NoError(t, err)

	t.Run("wrong password maps to the credentials error", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("wrong-password", hash)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("garbage hash fails", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("correct-password", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})
}
