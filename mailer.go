package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gofiber/template/django/v3"
	"github.com/mrz1836/postmark"
)

// SendEmailParams carries one outbound message. Tag groups messages for
// delivery analytics on the provider side.
type SendEmailParams struct {
	SendTo   string
	Subject  string
	BodyHTML string
	Tag      string
}

func (p SendEmailParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SendTo, validation.Required, is.Email),
		validation.Field(&p.Subject, validation.Required),
		validation.Field(&p.BodyHTML, validation.Required),
	)
}

// EmailSender delivers a rendered message. Implementations must be safe
// for concurrent use.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// MailerConfig holds the sender identity and template variables shared
// by every message the mailer produces.
type MailerConfig struct {
	AppName      string
	AppURL       string
	SenderEmail  string
	SupportEmail string
}

func (c MailerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AppName, validation.Required),
		validation.Field(&c.AppURL, validation.Required, is.URL),
		validation.Field(&c.SenderEmail, validation.Required, is.Email),
	)
}

// PostmarkConfig configures the production sender.
type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
}

func (c PostmarkConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServerToken, validation.Required),
		validation.Field(&c.AccountToken, validation.Required),
	)
}

// PostmarkSender delivers mail through the Postmark API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
	reply  string
}

func NewPostmarkSender(cfg PostmarkConfig, mailCfg MailerConfig) (*PostmarkSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid postmark configuration")
	}
	if err := mailCfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid mailer configuration")
	}

	reply := mailCfg.SupportEmail
	if reply == "" {
		reply = mailCfg.SenderEmail
	}

	return &PostmarkSender{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:   mailCfg.SenderEmail,
		reply:  reply,
	}, nil
}

func (s *PostmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email parameters")
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    s.reply,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email")
	}

	if resp.ErrorCode > 0 {
		return goerrors.New(
			fmt.Sprintf("postmark rejected message: %s", resp.Message),
			goerrors.CategoryOperation,
		).WithMetadata(map[string]any{
			"error_code": resp.ErrorCode,
			"to":         params.SendTo,
		})
	}

	return nil
}

// DevSender writes messages to disk instead of delivering them. Each
// message produces an HTML body plus a JSON metadata sidecar so local
// flows can be inspected in a browser.
type DevSender struct {
	dir    string
	logger Logger
}

func NewDevSender(dir string) (*DevSender, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "auth-emails")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create email output directory")
	}
	return &DevSender{dir: dir, logger: defLogger{}}, nil
}

func (s *DevSender) WithLogger(logger Logger) *DevSender {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email parameters")
	}

	base := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405.000"), sanitizeFilename(params.SendTo))
	htmlPath := filepath.Join(s.dir, base+".html")

	if err := os.WriteFile(htmlPath, []byte(params.BodyHTML), 0o644); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write email body")
	}

	meta, err := json.MarshalIndent(map[string]string{
		"to":      params.SendTo,
		"subject": params.Subject,
		"tag":     params.Tag,
	}, "", "  ")
	if err == nil {
		_ = os.WriteFile(filepath.Join(s.dir, base+".json"), meta, 0o644)
	}

	s.logger.Info("email captured: %s -> %s", params.Subject, htmlPath)

	return nil
}

func sanitizeFilename(s string) string {
	repl := strings.NewReplacer("@", "_at_", "/", "_", "\\", "_", ":", "_", " ", "_")
	return repl.Replace(s)
}

const (
	emailTagVerification  = "email-verification"
	emailTagPasswordReset = "password-reset"
)

// Mailer renders account emails from the embedded templates and hands
// them to an EmailSender. It implements Notifier.
type Mailer struct {
	sender EmailSender
	engine *django.Engine
	cfg    MailerConfig
}

var _ Notifier = (*Mailer)(nil)

func NewMailer(sender EmailSender, cfg MailerConfig) (*Mailer, error) {
	if sender == nil {
		return nil, goerrors.New("email sender is required", goerrors.CategoryInternal)
	}
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid mailer configuration")
	}

	engine := django.NewFileSystem(http.FS(templatesFS), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}

	return &Mailer{
		sender: sender,
		engine: engine,
		cfg:    cfg,
	}, nil
}

// SendVerificationEmail sends the account activation message. The link
// carries the one time token and stays valid for 24 hours.
func (m *Mailer) SendVerificationEmail(ctx context.Context, user *User, token string) error {
	link := m.actionURL("/auth/verify-email", token)

	body, err := m.render("templates/emails/verify_email", map[string]any{
		"app_name":   m.cfg.AppName,
		"name":       user.FullName(),
		"action_url": link,
	})
	if err != nil {
		return err
	}

	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   user.Email,
		Subject:  fmt.Sprintf("%s - Verify Your Email", m.cfg.AppName),
		BodyHTML: body,
		Tag:      emailTagVerification,
	})
}

// SendPasswordResetEmail sends the reset message. The link stays valid
// for 1 hour.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, user *User, token string) error {
	link := m.actionURL("/auth/reset-password", token)

	body, err := m.render("templates/emails/reset_password", map[string]any{
		"app_name":   m.cfg.AppName,
		"name":       user.FullName(),
		"action_url": link,
	})
	if err != nil {
		return err
	}

	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   user.Email,
		Subject:  fmt.Sprintf("%s - Password Reset", m.cfg.AppName),
		BodyHTML: body,
		Tag:      emailTagPasswordReset,
	})
}

func (m *Mailer) actionURL(path, token string) string {
	base := strings.TrimRight(m.cfg.AppURL, "/")
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

func (m *Mailer) render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email template")
	}
	return buf.String(), nil
}
