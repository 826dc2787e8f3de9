package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/clinickit/clinic-auth-api/internal/app"
	"github.com/clinickit/clinic-auth-api/internal/config"
	"github.com/clinickit/clinic-auth-api/internal/http/handler"
	"github.com/clinickit/clinic-auth-api/internal/http/router"
	"github.com/clinickit/clinic-auth-api/internal/notifier"
	"github.com/clinickit/clinic-auth-api/internal/observability"
	"github.com/clinickit/clinic-auth-api/internal/repository"
	"github.com/clinickit/clinic-auth-api/internal/security"
	"github.com/clinickit/clinic-auth-api/internal/service"
)

func main() {
	root := &cobra.Command{
		Use:          "clinic-auth-api",
		Short:        "Clinic authentication and token lifecycle API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	obs, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	resets := repository.NewResetTokenRepository(db)

	jwtMgr := security.NewJWTManager(
		cfg.JWTIssuer,
		cfg.JWTAudience,
		cfg.JWTAccessSecret,
		cfg.JWTRefreshSecret,
		cfg.AccessTTL(),
		cfg.RefreshTTL(),
	)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	mailer := notifier.NewSMTPNotifier(notifier.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		From:     cfg.MailFrom,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
	}, logger)

	clock := service.SystemClock()
	auth := service.NewAuthService(users, tokens, resets, jwtMgr, hasher, mailer, clock,
		cfg.TokenPepper, cfg.ResetTokenTTL(), cfg.AppURL)
	janitor := service.NewJanitor(tokens, resets, clock, cfg.CleanupInterval, logger)

	mux := router.New(router.Deps{
		Config:      cfg,
		JWTManager:  jwtMgr,
		AuthHandler: handler.NewAuthHandler(auth),
		Redis:       redisClient,
		Ready: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
	})

	return app.New(cfg, mux, janitor, obs, logger).Run(ctx)
}
