package auth_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/campuskit/go-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// TestConfig is a plain Config implementation for tests
type TestConfig struct {
	SigningKey        string
	RefreshSigningKey string
	TokenExpiration   time.Duration
	RefreshExpiration time.Duration
	ContextKey        string
	TokenLookup       string
	AuthScheme        string
	Issuer            string
	Audience          []string
}

func newTestConfig() *TestConfig {
	return &TestConfig{
		SigningKey:        "test-access-secret",
		RefreshSigningKey: "test-refresh-secret",
		TokenExpiration:   15 * time.Minute,
		RefreshExpiration: 168 * time.Hour,
		ContextKey:        "user",
		TokenLookup:       "header:Authorization",
		AuthScheme:        "Bearer",
		Issuer:            "test-issuer",
		Audience:          []string{"test:audience"},
	}
}

func (c *TestConfig) GetSigningKey() string                    { return c.SigningKey }
func (c *TestConfig) GetRefreshSigningKey() string             { return c.RefreshSigningKey }
func (c *TestConfig) GetTokenExpiration() time.Duration        { return c.TokenExpiration }
func (c *TestConfig) GetRefreshTokenExpiration() time.Duration { return c.RefreshExpiration }
func (c *TestConfig) GetContextKey() string                    { return c.ContextKey }
func (c *TestConfig) GetTokenLookup() string                   { return c.TokenLookup }
func (c *TestConfig) GetAuthScheme() string                    { return c.AuthScheme }
func (c *TestConfig) GetIssuer() string                        { return c.Issuer }
func (c *TestConfig) GetAudience() []string                    { return c.Audience }

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) { m.Called(format, args) }
func (m *MockLogger) Info(format string, args ...any)  { m.Called(format, args) }
func (m *MockLogger) Warn(format string, args ...any)  { m.Called(format, args) }
func (m *MockLogger) Error(format string, args ...any) { m.Called(format, args) }

// NopLogger discards everything, for tests that don't assert on logs
type NopLogger struct{}

func (NopLogger) Debug(format string, args ...any) {}
func (NopLogger) Info(format string, args ...any)  {}
func (NopLogger) Warn(format string, args ...any)  {}
func (NopLogger) Error(format string, args ...any) {}

// MockUsers mocks the subset of auth.Users the flows exercise. The
// embedded interface satisfies the remaining repository methods.
type MockUsers struct {
	mock.Mock
	auth.Users
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*auth.User, error) {
	args := m.Called(ctx, tx, email)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, token, now)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, token, now)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) CountUsersTx(ctx context.Context, tx bun.IDB) (int, error) {
	args := m.Called(ctx, tx)
	return args.Int(0), args.Error(1)
}

// CreateTx echoes the record back when the expectation returns (nil, nil),
// mirroring the real repository which returns the persisted row.
func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User, criteria ...repository.InsertCriteria) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	if args.Error(1) == nil {
		return record, nil
	}
	return nil, args.Error(1)
}

func (m *MockUsers) SetVerificationTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expires time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, id, token, expires)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expires time.Time) (*auth.User, error) {
	args := m.Called(ctx, tx, id, token, expires)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockRepositoryManager runs transaction bodies inline against MockUsers
type MockRepositoryManager struct {
	users *MockUsers
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{users: &MockUsers{}}
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() auth.Users { return m.users }

// CaptureNotifier records sent tokens on buffered channels so tests can
// wait for the detached send without sleeping.
type CaptureNotifier struct {
	Verification chan string
	Reset        chan string
}

func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{
		Verification: make(chan string, 4),
		Reset:        make(chan string, 4),
	}
}

func (n *CaptureNotifier) SendVerificationEmail(ctx context.Context, user *auth.User, token string) error {
	n.Verification <- token
	return nil
}

func (n *CaptureNotifier) SendPasswordResetEmail(ctx context.Context, user *auth.User, token string) error {
	n.Reset <- token
	return nil
}

// CaptureSink records activity events for assertions
type CaptureSink struct {
	Events []auth.ActivityEvent
}

func (s *CaptureSink) Record(ctx context.Context, event auth.ActivityEvent) error {
	s.Events = append(s.Events, event)
	return nil
}

func (s *CaptureSink) Last() (auth.ActivityEvent, bool) {
	if len(s.Events) == 0 {
		return auth.ActivityEvent{}, false
	}
	return s.Events[len(s.Events)-1], true
}

// CaptureSender records rendered emails instead of delivering them
type CaptureSender struct {
	Sent []auth.SendEmailParams
}

func (s *CaptureSender) SendEmail(ctx context.Context, params auth.SendEmailParams) error {
	s.Sent = append(s.Sent, params)
	return nil
}
