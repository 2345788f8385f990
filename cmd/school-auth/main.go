package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/campuskit/go-auth"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	cfg, err := auth.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	client, err := setupPersistence(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	repo := auth.NewRepositoryManager(client.DB())
	if err := repo.Validate(); err != nil {
		log.Fatal(err)
	}

	notifier, err := setupMailer(cfg)
	if err != nil {
		log.Fatal(err)
	}

	authenticator := auth.NewAuthenticator(repo, cfg).
		WithNotifier(notifier)

	httpAuth, err := auth.NewHTTPAuthenticator(authenticator.TokenService(), cfg)
	if err != nil {
		log.Fatal(err)
	}

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       cfg.AppName,
		}))
	})

	auth.RegisterAuthRoutes(srv.Router().Group("/"),
		func(ac *auth.AuthController) *auth.AuthController {
			ac.Debug = cfg.Debug
			ac.Repo = repo
			ac.Auther = authenticator
			ac.RouteAuth = httpAuth
			ac.Notifier = notifier
			return ac
		})

	srv.Serve(cfg.ServerAddr)

	WaitExitSignal()
}

func setupPersistence(ctx context.Context, cfg *auth.AppConfig) (*persistence.Client, error) {
	db, err := sql.Open(sqliteshim.ShimName, cfg.GetPersistence().GetDSN())
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*auth.User)(nil))

	client, err := persistence.New(cfg.GetPersistence(), db, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client, nil
}

func setupMailer(cfg *auth.AppConfig) (auth.Notifier, error) {
	var sender auth.EmailSender
	var err error

	if cfg.HasPostmark() {
		sender, err = auth.NewPostmarkSender(auth.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
		}, cfg.MailerConfig())
	} else {
		sender, err = auth.NewDevSender(cfg.EmailOutputDir)
	}
	if err != nil {
		return nil, err
	}

	return auth.NewMailer(sender, cfg.MailerConfig())
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
