package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Auther implements Authenticator against the users repository
type Auther struct {
	repo         RepositoryManager
	tokens       TokenService
	notifier     Notifier
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
}

// Verify interface compliance
var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, opts Config) *Auther {
	return &Auther{
		repo:         repo,
		tokens:       NewTokenService(opts, defLogger{}),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNotifier configures account email delivery. Without one, tokens are
// still persisted and flows succeed; nothing is sent.
func (s *Auther) WithNotifier(notifier Notifier) *Auther {
	s.notifier = notifier
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the TokenService built from config
func (s *Auther) WithTokenService(tokens TokenService) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// WithClock overrides the time source, used by tests to pin expirations
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// SignIn verifies email+password+role and returns a fresh token pair.
// Unknown email, wrong password, and role mismatch all collapse into the
// same ErrInvalidCredentials so callers cannot probe which accounts
// exist. An unverified email is reported distinctly.
func (s *Auther) SignIn(ctx context.Context, email, password string, role UserRole) (*TokenPair, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.emitAuthEvent(ctx, ActivityEventLoginFailure, "", email, map[string]any{
				"reason": "unknown_email",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for sign in")
	}

	if !user.EmailVerified {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), email, map[string]any{
			"reason": "email_not_verified",
		})
		return nil, ErrEmailNotVerified
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), email, map[string]any{
			"reason": "bad_password",
		})
		return nil, ErrInvalidCredentials
	}

	if role != "" && user.Role != role {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, user.ID.String(), email, map[string]any{
			"reason": "role_mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		s.logger.Error("SignIn token pair generation failed: %v", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, user.ID.String(), email, nil)

	return pair, nil
}

// Refresh validates a refresh token and issues a new pair. The user is
// re-read so renewed access tokens carry current names and role. Refresh
// tokens are not rotated: the presented one stays valid until expiry.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, claims.Email())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("Refresh presented valid token for missing user")
			return nil, ErrInvalidToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for refresh")
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		s.logger.Error("Refresh token pair generation failed: %v", err)
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, user.ID.String(), user.Email, nil)

	return pair, nil
}

// VerifyEmail consumes a verification token: the match requires an
// unexpired expiry, and consumption clears the token so it is single use.
func (s *Auther) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidActionToken
	}

	var user *User

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().GetByVerificationTokenTx(ctx, tx, token, s.now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidActionToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification token")
		}

		return s.repo.Users().MarkEmailVerifiedTx(ctx, tx, user.ID)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email verification transaction failed")
	}

	s.emitAuthEvent(ctx, ActivityEventEmailVerified, user.ID.String(), user.Email, nil)

	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// account, replacing any previous one.
func (s *Auther) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification resend")
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}

	token, err := GenerateOneTimeToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(VerificationTokenTTL)

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Users().SetVerificationTokenTx(ctx, tx, user.ID, token, expires)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification token")
	}

	s.notify(func(ctx context.Context) error {
		return s.notifier.SendVerificationEmail(ctx, user, token)
	})

	return nil
}

// RequestPasswordReset issues a reset token valid for one hour and mails
// the reset link. The token is persisted before the send, so a failed
// delivery never invalidates it.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, err := GenerateOneTimeToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(ResetTokenTTL)

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Users().SetResetTokenTx(ctx, tx, user.ID, token, expires)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetRequest, user.ID.String(), user.Email, nil)

	s.notify(func(ctx context.Context) error {
		return s.notifier.SendPasswordResetEmail(ctx, user, token)
	})

	return nil
}

// ResetPassword consumes a reset token and replaces the password hash.
// The token and new hash update atomically; a second use of the same
// token fails like an unknown one.
func (s *Auther) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidActionToken
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	var user *User

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().GetByResetTokenTx(ctx, tx, token, s.now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidActionToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		return s.repo.Users().ResetPasswordTx(ctx, tx, user.ID, hash)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordResetSuccess, user.ID.String(), user.Email, nil)

	return nil
}

// notify runs a send detached from the request. Delivery failures are
// logged, never surfaced: the persisted token remains valid either way.
func (s *Auther) notify(send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := send(ctx); err != nil {
			s.logger.Error("notification delivery failed: %v", err)
		}
	}()
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, userID, email string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
