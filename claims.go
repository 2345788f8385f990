package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshTokenType is the value of the "type" claim that marks a token as
// a refresh token. Access tokens carry no "type" claim.
const RefreshTokenType = "refresh"

// AuthClaims represents structured access token claims
type AuthClaims interface {
	Subject() string
	Email() string
	FirstName() string
	LastName() string
	Role() string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete access token claim set. The subject is the
// user's email; profile fields ride along so renewed UIs need no extra
// lookup.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserEmail     string `json:"email,omitempty"`
	UserFirstName string `json:"firstName,omitempty"`
	UserLastName  string `json:"lastName,omitempty"`
	UserRole      string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Email returns the email claim, falling back to the subject
func (c *JWTClaims) Email() string {
	if c.UserEmail != "" {
		return c.UserEmail
	}
	return c.Subject()
}

// FirstName returns the first name claim
func (c *JWTClaims) FirstName() string {
	return c.UserFirstName
}

// LastName returns the last name claim
func (c *JWTClaims) LastName() string {
	return c.UserLastName
}

// Role returns the role claim
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// HasRole checks if the claims carry the given role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// RefreshClaims is the refresh token claim set: subject and email only,
// tagged with TokenType so an access token cannot pass as one.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserEmail string `json:"email,omitempty"`
	TokenType string `json:"type,omitempty"`
}

// Email returns the email claim, falling back to the subject
func (c *RefreshClaims) Email() string {
	if c.UserEmail != "" {
		return c.UserEmail
	}
	return c.RegisteredClaims.Subject
}

// IsRefresh reports whether the claims are marked as a refresh token
func (c *RefreshClaims) IsRefresh() bool {
	return c.TokenType == RefreshTokenType
}
