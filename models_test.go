package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/campuskit/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_FullName(t *testing.T) {
	user := &auth.User{FirstName: "Jane", LastName: "Doe"}
	assert.Equal(t, "Jane Doe", user.FullName())
}

func TestUser_SensitiveFieldsStayOutOfJSON(t *testing.T) {
	token := "secret-verification-token"
	user := verifiedUser()
	user.EmailVerificationToken = &token
	user.PasswordResetToken = &token

	out, err := json.Marshal(user)
	require.NoError(t, err)

	payload := string(out)
	assert.NotContains(t, payload, user.PasswordHash)
	assert.NotContains(t, payload, "secret-verification-token")
	assert.Contains(t, payload, user.Email)
}
