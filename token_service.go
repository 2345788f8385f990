package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService issues and validates the two JWT families: short lived
// access tokens and long lived refresh tokens, each signed with its own
// secret so one can never pass for the other.
type TokenService interface {
	IssuePair(user *User) (*TokenPair, error)
	IssueAccessToken(user *User) (string, error)
	IssueRefreshToken(user *User) (string, error)
	ValidateAccess(tokenString string) (AuthClaims, error)
	ValidateRefresh(tokenString string) (*RefreshClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// Verify interface compliance
var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(opts Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		accessKey:  []byte(opts.GetSigningKey()),
		refreshKey: []byte(opts.GetRefreshSigningKey()),
		accessTTL:  opts.GetTokenExpiration(),
		refreshTTL: opts.GetRefreshTokenExpiration(),
		issuer:     opts.GetIssuer(),
		audience:   jwt.ClaimStrings(opts.GetAudience()),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, used by tests to pin expirations
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssuePair generates an access/refresh token pair for the user
func (ts *TokenServiceImpl) IssuePair(user *User) (*TokenPair, error) {
	access, err := ts.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// IssueAccessToken signs an access token carrying the user's profile claims
func (ts *TokenServiceImpl) IssueAccessToken(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.Email,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
		UserEmail:     user.Email,
		UserFirstName: user.FirstName,
		UserLastName:  user.LastName,
		UserRole:      string(user.Role),
	}

	return ts.signClaims(claims, ts.accessKey)
}

// IssueRefreshToken signs a refresh token for the user
func (ts *TokenServiceImpl) IssueRefreshToken(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := ts.now()
	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.Email,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.refreshTTL)),
		},
		UserEmail: user.Email,
		TokenType: RefreshTokenType,
	}

	return ts.signClaims(claims, ts.refreshKey)
}

func (ts *TokenServiceImpl) signClaims(claims jwt.Claims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// ValidateAccess parses and validates an access token, returning
// structured claims
func (ts *TokenServiceImpl) ValidateAccess(tokenString string) (AuthClaims, error) {
	token, err := ts.parse(tokenString, &JWTClaims{}, ts.accessKey)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService could not decode or validate access claims")
	return nil, ErrTokenMalformed
}

// ValidateRefresh parses and validates a refresh token. Tokens without
// the refresh type marker are rejected even when their signature checks
// out.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (*RefreshClaims, error) {
	token, err := ts.parse(tokenString, &RefreshClaims{}, ts.refreshKey)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService could not decode or validate refresh claims")
		return nil, ErrTokenMalformed
	}

	if !claims.IsRefresh() {
		ts.logger.Error("TokenService rejected token without refresh type marker")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) parse(tokenString string, claims jwt.Claims, key []byte) (*jwt.Token, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.now))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	return token, nil
}

// oneTimeTokenBytes is the entropy behind verification and reset tokens
const oneTimeTokenBytes = 32

// GenerateOneTimeToken produces the opaque hex token persisted for email
// verification and password reset links.
func GenerateOneTimeToken() (string, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token entropy")
	}
	return hex.EncodeToString(buf), nil
}
