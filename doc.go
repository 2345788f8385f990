// Package auth implements the authentication and authorization core of a
// school management backend: credential sign in with JWT access/refresh
// pairs, email verification and password reset flows backed by one time
// tokens, and declarative role based route gating.
package auth
