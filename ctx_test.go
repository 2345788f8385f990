package auth_test

import (
	"context"
	"testing"

	"github.com/campuskit/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		user := verifiedUser()
		ctx := auth.WithContext(context.Background(), user)

		got, ok := auth.FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, user, got)
	})

	t.Run("missing user", func(t *testing.T) {
		_, ok := auth.FromContext(context.Background())
		assert.False(t, ok)
	})
}

func TestClaimsContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		claims := &auth.JWTClaims{UserEmail: "jane.doe@example.com", UserRole: "ADMIN"}
		ctx := auth.WithClaimsContext(context.Background(), claims)

		got, ok := auth.GetClaims(ctx)
		require.True(t, ok)
		assert.Equal(t, "jane.doe@example.com", got.Email())
		assert.True(t, got.HasRole("ADMIN"))
	})

	t.Run("missing claims", func(t *testing.T) {
		_, ok := auth.GetClaims(context.Background())
		assert.False(t, ok)
	})
}
