package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/VitaminP8/forum/internal/auth"
	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/logging"
	"github.com/VitaminP8/forum/internal/mail"
	"github.com/VitaminP8/forum/internal/storage/postgres"
)

func main() {
	app := &cli.App{
		Name:  "forum",
		Usage: "manage the forum database and mail worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "storage",
				Usage: "storage type: postgres or sqlite (overrides DB_DRIVER)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create or update the schema",
				Action: withDB(func(c *cli.Context, cfg *config.Config) error { return postgres.Migrate() }),
			},
			{
				Name:   "init-data",
				Usage:  "migrate and insert roles and the root group",
				Action: withDB(initData),
			},
			{
				Name:   "check",
				Usage:  "verify roles and the root group exist",
				Action: withDB(func(c *cli.Context, cfg *config.Config) error { return postgres.CheckSetup(cfg.Forum) }),
			},
			{
				Name:  "adduser",
				Usage: "register an account and queue its confirmation mail",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"FORUM_NEW_PASSWORD"}},
				},
				Action: withDB(addUser),
			},
			{
				Name:   "worker",
				Usage:  "deliver queued mail over SMTP",
				Action: runWorker,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the logger.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if s := c.String("storage"); s != "" {
		if s != "postgres" && s != "sqlite" {
			return nil, fmt.Errorf("unknown storage type: %s", s)
		}
		cfg.Database.Driver = s
	}

	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format))
	return cfg, nil
}

func withDB(action func(c *cli.Context, cfg *config.Config) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if err := postgres.InitDB(cfg.Database); err != nil {
			return err
		}
		defer postgres.CloseDB()

		return action(c, cfg)
	}
}

func initData(c *cli.Context, cfg *config.Config) error {
	if err := postgres.Migrate(); err != nil {
		return err
	}
	if err := postgres.InsertRoles(); err != nil {
		return err
	}
	if err := postgres.InsertRootGroup(cfg.Forum); err != nil {
		return err
	}
	return postgres.CheckSetup(cfg.Forum)
}

func addUser(c *cli.Context, cfg *config.Config) error {
	if err := postgres.CheckSetup(cfg.Forum); err != nil {
		if errors.Is(err, postgres.ErrNoDefaultRole) {
			slog.Error("Forum is not initialized")
		}
		return err
	}

	mailer, err := mail.NewQueueMailer(cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer mailer.Close()

	tokens := auth.NewTokens(cfg.Forum.SecretKey, cfg.Forum.TokenTTL)
	users := postgres.NewUserPostgresStorage(cfg.Forum, mailer, tokens)

	u, err := users.RegisterUser(c.Context, c.String("email"), c.String("username"), c.String("password"))
	if err != nil {
		return err
	}

	slog.Info("User created", "user_id", u.ID, "role", u.Role.Name)
	return nil
}

func runWorker(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sender := &mail.SMTPSender{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.SMTPUsername,
		Password: cfg.Mail.SMTPPassword,
	}
	handler := mail.NewHandler(sender, cfg.Mail.SubjectPrefix, cfg.Mail.Sender)

	worker, err := mail.NewWorker(cfg.Redis.URL, handler, slog.Default())
	if err != nil {
		return err
	}
	if err := worker.Start(); err != nil {
		return err
	}
	slog.Info("Mail worker started", "queue", mail.QueueName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down mail worker")
	worker.Shutdown()
	return nil
}
