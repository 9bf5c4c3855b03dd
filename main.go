package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/blog-admin/internal/api"
	"github.com/isdelr/blog-admin/internal/auth"
	"github.com/isdelr/blog-admin/internal/config"
	"github.com/isdelr/blog-admin/internal/database"
	"github.com/isdelr/blog-admin/internal/logger"
	"github.com/isdelr/blog-admin/internal/maintenance"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/isdelr/blog-admin/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "blog-admin",
		Usage:  "admin backend for a small blog",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
			},
			{
				Name:  "create-user",
				Usage: "create a user account, optionally with admin rights",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
					&cli.BoolFlag{Name: "admin", Usage: "mark the user as administrator"},
				},
				Action: createUser,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("blog-admin failed")
	}
}

// setup loads configuration, initializes logging and opens the migrated database.
func setup(ctx context.Context) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.IsProduction())

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return cfg, db, nil
}

func createUser(c *cli.Context) error {
	_, db, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	username := c.String("username")
	user, err := services.NewUserService(db).CreateUser(c.Context, username, c.String("password"), c.Bool("admin"))
	if err != nil {
		if errors.Is(err, services.ErrDuplicateUser) {
			return fmt.Errorf("username %q is already taken", username)
		}
		if errors.Is(err, services.ErrPasswordTooLong) {
			return errors.New("password must be at most 72 bytes")
		}
		return err
	}
	log.Info().Str("user_id", user.ID).Str("username", user.Username).Bool("admin", user.IsAdmin).Msg("User created")
	return nil
}

func serve(c *cli.Context) error {
	cfg, db, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	renderer, err := views.New()
	if err != nil {
		return err
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Set up services
	userService := services.NewUserService(db)
	postService := services.NewPostService(db)
	messageService := services.NewMessageService(db)

	if n, err := userService.CountUsers(c.Context); err == nil && n == 0 {
		log.Warn().Msg("No users exist yet; create one with `blog-admin create-user --admin`")
	}

	if cfg.MessageRetention > 0 {
		scheduler, err := maintenance.NewScheduler(messageService, cfg.MessageRetention, cfg.MessagePurgeSchedule)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL, cfg.IsProduction())
	router := api.NewRouter(cfg, log.Logger, tokens, renderer, hub, userService, postService, messageService)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
