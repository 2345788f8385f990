package auth

import (
	"fmt"
	"time"

	"github.com/campuskit/go-auth/middleware/ratelimit"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the /auth surface: public credential flows
// with their per route rate limits, and the token protected profile
// route. Access rules live here, declared next to the route they gate.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)
	limits := controller.Limits

	app.
		Post(controller.Routes.Register,
			controller.RegisterPost,
			controller.limit(limits.Register),
		).
		SetName("auth.register.post")

	app.
		Post(controller.Routes.Login,
			controller.LoginPost,
			controller.limit(limits.Login),
		).
		SetName("auth.login.post")

	app.
		Post(controller.Routes.Refresh,
			controller.RefreshPost,
			controller.limit(limits.Refresh),
		).
		SetName("auth.refresh.post")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmailGet).
		SetName("auth.verify-email.get")

	app.Post(controller.Routes.ResendVerification,
		controller.ResendVerificationPost,
		controller.limit(limits.ResendVerification),
	).SetName("auth.resend-verification.post")

	app.Post(controller.Routes.ForgotPassword,
		controller.ForgotPasswordPost,
		controller.limit(limits.ForgotPassword),
	).SetName("auth.forgot-password.post")

	app.Post(controller.Routes.ResetPassword,
		controller.ResetPasswordPost,
		controller.limit(limits.ResetPassword),
	).SetName("auth.reset-password.post")

	app.Get(controller.Routes.Profile,
		controller.ProfileGet,
		controller.RouteAuth.ProtectedRoute(RequireAuthenticated()),
	).SetName("auth.profile.get")
}

type AuthControllerRoutes struct {
	Register           string
	Login              string
	Refresh            string
	VerifyEmail        string
	ResendVerification string
	ForgotPassword     string
	ResetPassword      string
	Profile            string
}

// AuthControllerLimits holds the per route rate limit settings. A zero
// Max disables the limiter for that route.
type AuthControllerLimits struct {
	Register           ratelimit.Config
	Login              ratelimit.Config
	Refresh            ratelimit.Config
	ResendVerification ratelimit.Config
	ForgotPassword     ratelimit.Config
	ResetPassword      ratelimit.Config
}

type AuthController struct {
	Debug     bool
	Logger    Logger
	Repo      RepositoryManager
	Auther    Authenticator
	RouteAuth *RouteAuthenticator
	Notifier  Notifier
	Routes    *AuthControllerRoutes
	Limits    *AuthControllerLimits
	register  *RegisterUserHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:           "/auth/register",
			Login:              "/auth/login",
			Refresh:            "/auth/refresh",
			VerifyEmail:        "/auth/verify-email",
			ResendVerification: "/auth/resend-verification",
			ForgotPassword:     "/auth/forgot-password",
			ResetPassword:      "/auth/reset-password",
			Profile:            "/auth/profile",
		},
		Limits: &AuthControllerLimits{
			Register:           ratelimit.Config{Max: 3, Window: 5 * time.Minute},
			Login:              ratelimit.Config{Max: 5, Window: time.Minute},
			Refresh:            ratelimit.Config{Max: 10, Window: time.Minute},
			ResendVerification: ratelimit.Config{Max: 3, Window: 5 * time.Minute},
			ForgotPassword:     ratelimit.Config{Max: 3, Window: 5 * time.Minute},
			ResetPassword:      ratelimit.Config{Max: 5, Window: 5 * time.Minute},
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.RouteAuth == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	c.register = NewRegisterUserHandler(c.Repo).
		WithNotifier(c.Notifier).
		WithLogger(c.Logger)

	return c
}

func (a *AuthController) WithLogger(logger Logger) *AuthController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a *AuthController) limit(cfg ratelimit.Config) router.MiddlewareFunc {
	if cfg.Max <= 0 {
		return func(hf router.HandlerFunc) router.HandlerFunc {
			return func(ctx router.Context) error {
				return ctx.Next()
			}
		}
	}
	return ratelimit.New(cfg).Middleware()
}

// RegisterRequest payload
type RegisterRequest struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Phone     string `form:"phone_number" json:"phone_number"`
	Role      string `form:"role" json:"role"`
	Password  string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
	)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: %v", err)
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %v", err)
		return validationJSON(ctx, err)
	}

	var created *User

	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Role:      payload.Role,
		Password:  payload.Password,
		OnResponse: func(user *User) {
			created = user
		},
	}

	if err := a.register.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: %v", err)
		return RespondError(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= AUTH REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(created))
		fmt.Println("============================")
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"message": "Registration successful, please verify your email",
		"user": map[string]any{
			"id":         created.ID.String(),
			"email":      created.Email,
			"first_name": created.FirstName,
			"last_name":  created.LastName,
			"role":       created.Role,
		},
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Role     string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
		validation.Field(
			&r.Role,
			validation.Required,
			validation.By(validateRoleName),
		),
	)
}

func validateRoleName(value any) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	if _, ok := ParseRole(name); !ok {
		return fmt.Errorf("must be one of %v", GetAllRoles())
	}
	return nil
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationJSON(ctx, err)
	}

	role, _ := ParseRole(payload.Role)

	pair, err := a.Auther.SignIn(ctx.Context(), payload.Email, payload.Password, role)
	if err != nil {
		a.Logger.Info("login rejected for %s", payload.Email)
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, pair)
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationJSON(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, pair)
}

func (a *AuthController) VerifyEmailGet(ctx router.Context) error {
	token := ctx.Query("token", "")

	if err := a.Auther.VerifyEmail(ctx.Context(), token); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Email verified successfully",
	})
}

// EmailRequest payload shared by resend verification and forgot password
type EmailRequest struct {
	Email string `form:"email" json:"email"`
}

// Validate will run validation rules
func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AuthController) ResendVerificationPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationJSON(ctx, err)
	}

	if err := a.Auther.ResendVerification(ctx.Context(), payload.Email); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Verification email sent",
	})
}

func (a *AuthController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(EmailRequest)

	if err := ctx.Bind(payload); err != nil {
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationJSON(ctx, err)
	}

	if err := a.Auther.RequestPasswordReset(ctx.Context(), payload.Email); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Password reset email sent",
	})
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Token       string `form:"token" json:"token"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 72)),
	)
}

func (a *AuthController) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return badRequestJSON(ctx, "failed to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationJSON(ctx, err)
	}

	if err := a.Auther.ResetPassword(ctx.Context(), payload.Token, payload.NewPassword); err != nil {
		return RespondError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Password has been reset",
	})
}

// ProfileGet answers with the caller's decoded claims. The middleware
// has already validated the token and stored the claims in the context.
func (a *AuthController) ProfileGet(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.RouteAuth.cfg.GetContextKey())
	if !ok {
		return RespondError(ctx, ErrTokenMalformed)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"sub":        claims.Subject(),
		"email":      claims.Email(),
		"first_name": claims.FirstName(),
		"last_name":  claims.LastName(),
		"role":       claims.Role(),
		"issued_at":  claims.IssuedAt(),
		"expires_at": claims.Expires(),
	})
}

func badRequestJSON(ctx router.Context, message string) error {
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": message,
		},
	})
}

func validationJSON(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message":    "invalid request payload",
			"validation": FormatValidationErrorToMap(err),
		},
	})
}
