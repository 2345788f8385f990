package auth

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// PersistenceConfig configures the database connection and migrations.
// It satisfies the persistence client's Config interface.
type PersistenceConfig struct {
	DSN            string        `env:"DATABASE_DSN" envDefault:"file:school_auth.db?cache=shared&_pragma=foreign_keys(1)"`
	Driver         string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	Server         string        `env:"DATABASE_SERVER"`
	Database       string        `env:"DATABASE_NAME" envDefault:"school_auth"`
	Debug          bool          `env:"DATABASE_DEBUG" envDefault:"false"`
	PingTimeout    time.Duration `env:"DATABASE_PING_TIMEOUT" envDefault:"5s"`
	OtelIdentifier string        `env:"DATABASE_OTEL_ID"`
}

func (p PersistenceConfig) GetDSN() string { return p.DSN }

func (p PersistenceConfig) GetDriver() string { return p.Driver }

func (p PersistenceConfig) GetServer() string { return p.Server }

func (p PersistenceConfig) GetDatabase() string { return p.Database }

func (p PersistenceConfig) GetDebug() bool { return p.Debug }

func (p PersistenceConfig) GetPingTimeout() time.Duration { return p.PingTimeout }

func (p PersistenceConfig) GetOtelIdentifier() string { return p.OtelIdentifier }

// AppConfig is the environment backed configuration for the whole auth
// stack. It satisfies the Config interface consumed by the token
// service and route middleware.
type AppConfig struct {
	AppName    string `env:"APP_NAME" envDefault:"School Management"`
	AppURL     string `env:"APP_URL" envDefault:"http://localhost:3000"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":3000"`
	Debug      bool   `env:"APP_DEBUG" envDefault:"false"`

	SigningKey        string        `env:"JWT_SECRET,required"`
	RefreshSigningKey string        `env:"JWT_REFRESH_SECRET,required"`
	TokenExpiration   time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m"`
	RefreshExpiration time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"168h"`
	Issuer            string        `env:"JWT_ISSUER"`
	Audience          []string      `env:"JWT_AUDIENCE" envSeparator:","`

	ContextKey  string `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenLookup string `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme  string `env:"AUTH_SCHEME" envDefault:"Bearer"`

	SenderEmail  string `env:"MAIL_SENDER_EMAIL" envDefault:"no-reply@localhost"`
	SupportEmail string `env:"MAIL_SUPPORT_EMAIL"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	// EmailOutputDir switches delivery to the filesystem sender when
	// Postmark credentials are absent.
	EmailOutputDir string `env:"MAIL_OUTPUT_DIR"`

	Persistence PersistenceConfig `envPrefix:""`
}

var _ Config = (*AppConfig)(nil)

func (c *AppConfig) GetSigningKey() string { return c.SigningKey }

func (c *AppConfig) GetRefreshSigningKey() string { return c.RefreshSigningKey }

func (c *AppConfig) GetTokenExpiration() time.Duration { return c.TokenExpiration }

func (c *AppConfig) GetRefreshTokenExpiration() time.Duration { return c.RefreshExpiration }

func (c *AppConfig) GetContextKey() string { return c.ContextKey }

func (c *AppConfig) GetTokenLookup() string { return c.TokenLookup }

func (c *AppConfig) GetAuthScheme() string { return c.AuthScheme }

func (c *AppConfig) GetIssuer() string { return c.Issuer }

func (c *AppConfig) GetAudience() []string { return c.Audience }

func (c *AppConfig) GetPersistence() PersistenceConfig { return c.Persistence }

// MailerConfig derives the mailer settings from the app identity.
func (c *AppConfig) MailerConfig() MailerConfig {
	return MailerConfig{
		AppName:      c.AppName,
		AppURL:       c.AppURL,
		SenderEmail:  c.SenderEmail,
		SupportEmail: c.SupportEmail,
	}
}

// HasPostmark reports whether production mail credentials are present.
func (c *AppConfig) HasPostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}

var dotenvOnce sync.Once

// LoadConfig reads a .env file when present and parses the environment
// into an AppConfig.
func LoadConfig() (*AppConfig, error) {
	dotenvOnce.Do(func() {
		// the .env file is optional
		_ = godotenv.Load()
	})

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment configuration")
	}

	return cfg, nil
}
