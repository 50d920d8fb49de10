package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pusherd/pusherd/internal/adminauth"
	"github.com/pusherd/pusherd/internal/api"
	"github.com/pusherd/pusherd/internal/app"
	"github.com/pusherd/pusherd/internal/bootstrap"
	"github.com/pusherd/pusherd/internal/config"
	"github.com/pusherd/pusherd/internal/hub"
	"github.com/pusherd/pusherd/internal/httputil"
	"github.com/pusherd/pusherd/internal/postgres"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting pusherd")

	if cfg.CORSAllowOrigins == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn, cfg.DatabaseMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.DatabaseURL, log.Logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	firstRun, err := bootstrap.IsFirstRun(ctx, db)
	if err != nil {
		return fmt.Errorf("check first run: %w", err)
	}
	if firstRun {
		log.Info().Msg("First run detected, seeding admin credential")
		if err := bootstrap.RunFirstInit(ctx, db, cfg); err != nil {
			return fmt.Errorf("first-run initialization: %w", err)
		}
		log.Info().Msg("First-run initialization complete")
	}

	appRepo := app.NewPGRepository(db, log.Logger)
	adminRepo := adminauth.NewPGRepository(db)
	h := hub.New(appRepo, cfg.MaxConnectionsPerApp, log.Logger)

	fiberApp := fiber.New(fiber.Config{
		AppName:   "pusherd",
		BodyLimit: int(cfg.MaxFrameBytes),
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "An internal error occurred"
			code := httputil.CodeInternal
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
				message = fiberErr.Message
				code = fiberStatusToCode(fiberErr.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return httputil.Fail(c, status, code, message)
		},
	})

	fiberApp.Use(requestid.New())
	fiberApp.Use(httputil.RequestLogger(log.Logger))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(cfg.CORSAllowOrigins, ","),
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-App-Signature"},
	}))

	registerRoutes(fiberApp, h, appRepo, adminRepo, cfg, db)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Server listening")

	if err := fiberApp.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func registerRoutes(fiberApp *fiber.App, h *hub.Hub, appRepo app.Repository, adminRepo adminauth.Repository, cfg *config.Config, db *pgxpool.Pool) {
	health := &api.HealthHandler{DB: db}
	fiberApp.Get("/health", health.Health)

	admin := api.NewAdminHandler(appRepo, adminRepo, cfg.AdminJWTSecret, cfg.AdminJWTIssuer, cfg.AdminTokenTTL, log.Logger)
	fiberApp.Post("/admin/login", admin.Login)

	adminGroup := fiberApp.Group("/admin/apps", adminauth.RequireAdmin(cfg.AdminJWTSecret, cfg.AdminJWTIssuer))
	adminGroup.Post("/", admin.CreateApp)
	adminGroup.Get("/", admin.ListApps)
	adminGroup.Delete("/:app_id", admin.DeleteApp)

	ws := api.NewWSHandler(h, cfg.PingInterval, cfg.PongTimeout, cfg.MaxFrameBytes, cfg.OutboxBufferSize, log.Logger)
	fiberApp.Get("/app/:app_id", ws.Upgrade)

	events := api.NewEventsHandler(h, log.Logger)
	channels := api.NewChannelsHandler(h)

	appGroup := fiberApp.Group("/apps/:app_id", api.RequireAppAuth(appRepo))
	appGroup.Post("/events", events.Publish)
	appGroup.Get("/channels", channels.List)
	appGroup.Get("/channels/:channel/users", channels.Users)

	fiberApp.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// fiberStatusToCode maps an HTTP status code from Fiber's built-in errors (404, 405, etc.) to the closest error code.
func fiberStatusToCode(status int) httputil.ErrorCode {
	switch status {
	case fiber.StatusNotFound:
		return httputil.CodeNotFound
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return httputil.CodeUnauthorized
	default:
		if status >= 400 && status < 500 {
			return httputil.CodeBadRequest
		}
		return httputil.CodeInternal
	}
}
