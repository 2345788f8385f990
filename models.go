package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleAdmin administers the school (manages users, courses, classes)
	RoleAdmin UserRole = "ADMIN"
	// RoleTeacher teaches classes and manages grades/attendance
	RoleTeacher UserRole = "TEACHER"
	// RoleStudent attends classes
	RoleStudent UserRole = "STUDENT"
)

const (
	// VerificationTokenTTL is how long an email verification token stays valid
	VerificationTokenTTL = 24 * time.Hour
	// ResetTokenTTL is how long a password reset token stays valid
	ResetTokenTTL = time.Hour
)

// User is the credential record
type User struct {
	bun.BaseModel            `bun:"table:users,alias:usr"`
	ID                       uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                     UserRole   `bun:"role,notnull" json:"role,omitempty"`
	FirstName                string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName                 string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email                    string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone                    string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash             string     `bun:"password_hash" json:"-"`
	EmailVerified            bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	EmailVerificationToken   *string    `bun:"email_verification_token,nullzero" json:"-"`
	EmailVerificationExpires *time.Time `bun:"email_verification_expires,nullzero" json:"-"`
	PasswordResetToken       *string    `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires     *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	CreatedAt                *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt                *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt                *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// FullName joins first and last names for notification templates
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// TokenPair bundles the access and refresh tokens returned by sign in
// and refresh operations.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
