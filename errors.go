package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes carried to API clients alongside the HTTP status
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeInvalidActionToken = "INVALID_ACTION_TOKEN"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeRateLimited        = "RATE_LIMITED"
)

// ErrInvalidCredentials is the uniform sign in failure. Unknown email, a
// wrong password, and a role mismatch all surface this same error so a
// caller cannot probe which accounts exist.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is returned when a password does not match
// its stored hash
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified blocks sign in until the account's email is verified
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for JWTs past their exp claim
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for JWTs that fail parsing or signature
// verification
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken rejects a refresh token that verifies cryptographically
// but no longer maps to an account
var ErrInvalidToken = goerrors.New("invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidActionToken covers verification/reset tokens that are unknown,
// already consumed, or past their stored expiry. The three cases are not
// distinguished to the caller.
var ErrInvalidActionToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidActionToken).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is returned where revealing account existence is safe
// (resend verification for an unknown address)
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmailTaken is the registration conflict for an email already on file
var ErrEmailTaken = goerrors.New("a user with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyVerified is returned when resending verification for an
// account that already verified its email
var ErrAlreadyVerified = goerrors.New("email address is already verified", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrForbidden is returned when a valid token's role is not in the
// route's allowed set
var ErrForbidden = goerrors.New("insufficient role for this resource", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyRequests is the rate limiter rejection. The middleware maps
// it to 429 directly.
var ErrTooManyRequests = goerrors.New("too many requests", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
