package jwtware_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/go-auth/middleware/jwtware"
)

// mockContext fakes the request surface the middleware touches. Headers
// and locals live in separate maps so a token placed in one is never
// visible through the other.
// routerContext renames the embedded interface so the mock's Context()
// method does not collide with the embedded field name.
type routerContext = router.Context

type mockContext struct {
	routerContext

	headers map[string]string
	queries map[string]string
	cookies map[string]string
	locals  map[any]any

	status     int
	body       any
	nextCalled bool
}

func newMockContext() *mockContext {
	return &mockContext{
		headers: map[string]string{},
		queries: map[string]string{},
		cookies: map[string]string{},
		locals:  map[any]any{},
	}
}

func (m *mockContext) Header(key string) string { return m.headers[key] }

func (m *mockContext) Query(name string, defaultValue ...string) string {
	if v, ok := m.queries[name]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *mockContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := m.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (m *mockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.locals[key] = value[0]
	}
	return m.locals[key]
}

func (m *mockContext) Next() error {
	m.nextCalled = true
	return nil
}

func (m *mockContext) JSON(code int, v any) error {
	m.status = code
	m.body = v
	return nil
}

func (m *mockContext) Context() context.Context { return context.Background() }

func (m *mockContext) SetContext(_ context.Context) {}

type stubClaims struct {
	subject string
	email   string
	role    string
}

func (c stubClaims) Subject() string { return c.subject }
func (c stubClaims) Email() string   { return c.email }
func (c stubClaims) Role() string    { return c.role }

func (c stubClaims) HasRole(role string) bool { return c.role == role }

// stubValidator records the raw credential it was handed
type stubValidator struct {
	claims   jwtware.AuthClaims
	err      error
	gotToken string
	calls    int
}

func (v *stubValidator) ValidateAccess(tokenString string) (jwtware.AuthClaims, error) {
	v.calls++
	v.gotToken = tokenString
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func testConfig(validator *stubValidator) jwtware.Config {
	return jwtware.Config{
		SigningKey:     jwtware.SigningKey{Key: []byte("test-secret"), JWTAlg: "HS256"},
		TokenValidator: validator,
	}
}

func errorMessage(t *testing.T, body any) string {
	t.Helper()

	wrapper, ok := body.(map[string]any)
	require.True(t, ok, "expected a JSON object body, got %T", body)
	inner, ok := wrapper["error"].(map[string]any)
	require.True(t, ok, "expected an error envelope, got %v", wrapper)
	msg, _ := inner["message"].(string)
	return msg
}

func TestHeaderExtraction(t *testing.T) {
	t.Run("reads the bearer credential from the authorization header", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{subject: "jane@example.com", role: "TEACHER"}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.Equal(t, "tok-123", validator.gotToken)
		assert.True(t, ctx.nextCalled)
		assert.Equal(t, validator.claims, ctx.locals["user"])
	})

	t.Run("scheme comparison is case insensitive", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{role: "STUDENT"}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.Equal(t, "tok-123", validator.gotToken)
	})

	t.Run("missing header answers 401", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()

		require.NoError(t, handler(ctx))
		assert.Equal(t, router.StatusUnauthorized, ctx.status)
		assert.Equal(t, jwtware.ErrJWTMissingOrMalformed.Error(), errorMessage(t, ctx.body))
		assert.False(t, ctx.nextCalled)
		assert.Zero(t, validator.calls)
	})

	t.Run("wrong scheme answers 401", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "Basic dXNlcjpwYXNz"

		require.NoError(t, handler(ctx))
		assert.Equal(t, router.StatusUnauthorized, ctx.status)
		assert.False(t, ctx.nextCalled)
		assert.Zero(t, validator.calls)
	})

	t.Run("token placed in locals is not an authorization header", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.locals[router.HeaderAuthorization] = "Bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.Equal(t, router.StatusUnauthorized, ctx.status)
		assert.Zero(t, validator.calls)
	})
}

func TestRejectedToken(t *testing.T) {
	validator := &stubValidator{err: assert.AnError}
	handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
		return ctx.Next()
	})

	ctx := newMockContext()
	ctx.headers[router.HeaderAuthorization] = "Bearer expired-or-garbage"

	require.NoError(t, handler(ctx))
	assert.Equal(t, router.StatusUnauthorized, ctx.status)
	assert.Equal(t, "Invalid or expired token", errorMessage(t, ctx.body))
	assert.False(t, ctx.nextCalled)
}

func TestRoleEnforcement(t *testing.T) {
	t.Run("member of the allowed set passes", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{role: "TEACHER"}}
		cfg := testConfig(validator)
		cfg.AllowedRoles = []string{"TEACHER"}

		handler := jwtware.New(cfg)(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.nextCalled)
	})

	t.Run("role outside the set answers 403", func(t *testing.T) {
		// flat membership: ADMIN gets no pass onto a TEACHER route
		validator := &stubValidator{claims: stubClaims{role: "ADMIN"}}
		cfg := testConfig(validator)
		cfg.AllowedRoles = []string{"TEACHER"}

		handler := jwtware.New(cfg)(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.Equal(t, router.StatusForbidden, ctx.status)
		assert.Equal(t, "insufficient role for this resource", errorMessage(t, ctx.body))
		assert.False(t, ctx.nextCalled)
	})

	t.Run("empty allowed set admits any authenticated caller", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{role: "STUDENT"}}
		handler := jwtware.New(testConfig(validator))(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.headers[router.HeaderAuthorization] = "Bearer tok-123"

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.nextCalled)
	})
}

func TestCustomTokenLookup(t *testing.T) {
	t.Run("query parameter", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}
		cfg := testConfig(validator)
		cfg.TokenLookup = "query:auth_token"

		handler := jwtware.New(cfg)(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.queries["auth_token"] = "tok-9"

		require.NoError(t, handler(ctx))
		assert.Equal(t, "tok-9", validator.gotToken)
		assert.True(t, ctx.nextCalled)
	})

	t.Run("cookie fallback after header", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}
		cfg := testConfig(validator)
		cfg.TokenLookup = "header:Authorization,cookie:jwt"

		handler := jwtware.New(cfg)(func(ctx router.Context) error {
			return ctx.Next()
		})

		ctx := newMockContext()
		ctx.cookies["jwt"] = "tok-from-cookie"

		require.NoError(t, handler(ctx))
		assert.Equal(t, "tok-from-cookie", validator.gotToken)
	})
}
