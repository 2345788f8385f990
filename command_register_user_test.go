package auth_test

import (
	"context"
	"testing"

	"github.com/campuskit/go-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func registerMessage() auth.RegisterUserMessage {
	return auth.RegisterUserMessage{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "Jane.Doe@Example.com",
		Role:      "teacher",
		Password:  testPassword,
	}
}

func TestRegisterUserMessage_Validate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, registerMessage().Validate())
	})

	t.Run("missing names", func(t *testing.T) {
		msg := registerMessage()
		msg.FirstName = ""
		assert.Error(t, msg.Validate())

		msg = registerMessage()
		msg.LastName = ""
		assert.Error(t, msg.Validate())
	})

	t.Run("bad email", func(t *testing.T) {
		msg := registerMessage()
		msg.Email = "not-an-email"
		assert.Error(t, msg.Validate())
	})

	t.Run("short password", func(t *testing.T) {
		msg := registerMessage()
		msg.Password = "short"
		assert.Error(t, msg.Validate())
	})

	t.Run("invalid phone", func(t *testing.T) {
		msg := registerMessage()
		msg.Phone = "not-a-phone"
		assert.Error(t, msg.Validate())
	})

	t.Run("phone is optional", func(t *testing.T) {
		msg := registerMessage()
		msg.Phone = ""
		assert.NoError(t, msg.Validate())
	})
}

func TestRegisterUserHandler_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a user with hashed password and verification token", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		notifier := NewCaptureNotifier()
		handler := auth.NewRegisterUserHandler(repo).
			WithNotifier(notifier)

		var created *auth.User
		repo.users.On("GetByEmailTx", mock.Anything, mock.Anything, "jane.doe@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()
		repo.users.On("CountUsersTx", mock.Anything, mock.Anything).Return(5, nil).Once()
		repo.users.On("CreateTx", mock.Anything, mock.Anything, mock.AnythingOfType("*auth.User")).
			Run(func(args mock.Arguments) {
				created = args.Get(2).(*auth.User)
			}).
			Return(nil, nil).Once()

		var responded *auth.User
		msg := registerMessage()
		msg.OnResponse = func(u *auth.User) { responded = u }

		err := handler.Execute(ctx, msg)
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, "jane.doe@example.com", created.Email, "email is normalized")
		assert.Equal(t, auth.RoleTeacher, created.Role)
		assert.NotEqual(t, testPassword, created.PasswordHash)
		assert.NoError(t, auth.ComparePasswordAndHash(testPassword, created.PasswordHash))

		require.NotNil(t, created.EmailVerificationToken)
		assert.Len(t, *created.EmailVerificationToken, 64)
		require.NotNil(t, created.EmailVerificationExpires)

		assert.Same(t, created, responded)

		token := waitForToken(t, notifier.Verification)
		assert.Equal(t, *created.EmailVerificationToken, token)
	})

	t.Run("first user becomes admin regardless of requested role", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		handler := auth.NewRegisterUserHandler(repo)

		var created *auth.User
		repo.users.On("GetByEmailTx", mock.Anything, mock.Anything, "jane.doe@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()
		repo.users.On("CountUsersTx", mock.Anything, mock.Anything).Return(0, nil).Once()
		repo.users.On("CreateTx", mock.Anything, mock.Anything, mock.AnythingOfType("*auth.User")).
			Run(func(args mock.Arguments) {
				created = args.Get(2).(*auth.User)
			}).
			Return(&auth.User{}, nil).Once()

		msg := registerMessage()
		msg.Role = "student"

		err := handler.Execute(ctx, msg)
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, auth.RoleAdmin, created.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		handler := auth.NewRegisterUserHandler(repo)

		existing := verifiedUser()
		repo.users.On("GetByEmailTx", mock.Anything, mock.Anything, "jane.doe@example.com").
			Return(existing, nil).Once()

		err := handler.Execute(ctx, registerMessage())
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})

	t.Run("invalid payload short circuits before any store access", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		handler := auth.NewRegisterUserHandler(repo)

		msg := registerMessage()
		msg.Password = "short"

		err := handler.Execute(ctx, msg)
		assert.Error(t, err)
		repo.users.AssertNotCalled(t, "GetByEmailTx", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo := NewMockRepositoryManager()
		handler := auth.NewRegisterUserHandler(repo)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := handler.Execute(cancelled, registerMessage())
		assert.Error(t, err)
	})
}
