package auth

import (
	"context"
	"net/http"

	"github.com/campuskit/go-auth/middleware/jwtware"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteAuthenticator wires bearer extraction and route access metadata
// into go-router middleware. Handlers behind it can read claims from the
// context and never re-check roles themselves.
type RouteAuthenticator struct {
	tokens       TokenService
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(tokens TokenService, cfg Config) (*RouteAuthenticator, error) {
	if tokens == nil {
		return nil, errors.New("token service is required", errors.CategoryInternal)
	}

	a := &RouteAuthenticator{
		tokens: tokens,
		cfg:    cfg,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute builds the middleware for one route from its declared
// access. Public routes pass through untouched; everything else gets
// bearer extraction, validation against the access secret, and a flat
// role membership check.
func (a *RouteAuthenticator) ProtectedRoute(access RouteAccess) router.MiddlewareFunc {
	if access.Public {
		return func(hf router.HandlerFunc) router.HandlerFunc {
			return func(ctx router.Context) error {
				return ctx.Next()
			}
		}
	}

	return jwtware.New(jwtware.Config{
		ErrorHandler: a.MakeAuthErrorHandler(),
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: "HS256",
		},
		AuthScheme:     a.cfg.GetAuthScheme(),
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    a.cfg.GetTokenLookup(),
		TokenValidator: accessValidator{tokens: a.tokens},
		AllowedRoles:   access.AllowedRoles.Strings(),
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(c, ac)
			}
			return c
		},
	})
}

// MakeAuthErrorHandler classifies middleware failures: role rejections
// answer 403, everything else is a credential problem and answers 401.
func (a *RouteAuthenticator) MakeAuthErrorHandler() func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var roleErr *jwtware.ErrInsufficientRole
		if errors.As(err, &roleErr) {
			a.Logger.Info("Authorization rejected role %q for %s", roleErr.Role, ctx.OriginalURL())
			return a.ErrorHandler(ctx, ErrForbidden)
		}

		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithTextCode(TextCodeTokenMalformed).
				WithCode(errors.CodeUnauthorized)
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return RespondError(c, err)
}

// accessValidator adapts TokenService to the jwtware validator contract
type accessValidator struct {
	tokens TokenService
}

func (v accessValidator) ValidateAccess(raw string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.ValidateAccess(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// RespondError writes the JSON error body for a failure, mapping the
// rich error's code to the HTTP status.
func RespondError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = statusForCategory(richErr.Category)
	}

	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if ve, ok := err.(validation.Errors); ok {
		for field, fieldErr := range ve {
			out[field] = fieldErr.Error()
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}
