package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/Dosada05/lanparty/auth"
	"github.com/Dosada05/lanparty/config"
	"github.com/Dosada05/lanparty/db"
	"github.com/Dosada05/lanparty/handlers"
	"github.com/Dosada05/lanparty/middleware"
	"github.com/Dosada05/lanparty/realtime"
	"github.com/Dosada05/lanparty/repositories"
	"github.com/Dosada05/lanparty/routes"
	"github.com/Dosada05/lanparty/services"
	"github.com/Dosada05/lanparty/storage"
)

const shutdownTimeout = 15 * time.Second

// repositorySet is the storage backend the services run on.
type repositorySet struct {
	tx            repositories.Transactor
	users         repositories.UserRepository
	events        repositories.EventRepository
	registrations repositories.RegistrationRepository
	tournaments   repositories.TournamentRepository
	teams         repositories.TeamRepository
	close         func()
}

func newServeCommand() *cobra.Command {
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func openRepositories(cfg *config.Config, logger *slog.Logger) (*repositorySet, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		store := repositories.NewMemoryStore()
		return &repositorySet{
			tx:            store,
			users:         store.Users(),
			events:        store.Events(),
			registrations: store.Registrations(),
			tournaments:   store.Tournaments(),
			teams:         store.Teams(),
			close:         func() {},
		}, nil
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("database connection established")
	return &repositorySet{
		tx:            repositories.NewPostgresTransactor(dbConn, logger),
		users:         repositories.NewPostgresUserRepository(dbConn),
		events:        repositories.NewPostgresEventRepository(dbConn),
		registrations: repositories.NewPostgresRegistrationRepository(dbConn),
		tournaments:   repositories.NewPostgresTournamentRepository(dbConn),
		teams:         repositories.NewPostgresTeamRepository(dbConn),
		close: func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		},
	}, nil
}

// originChecker accepts websocket upgrades from the CORS origins. A wildcard accepts all.
func originChecker(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func serve(migrateFirst bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("storage", cfg.Storage))

	if migrateFirst && cfg.Storage == config.StoragePostgres {
		if err := db.MigrateUp(cfg.DatabaseURL, logger); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	repos, err := openRepositories(cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	var uploader storage.FileUploader
	if cfg.UploadsEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("R2 settings incomplete, picture uploads disabled")
	}

	bus := realtime.NewBus()
	tokens := auth.NewTokenManager(cfg.JWTSecretKey, cfg.JWTTTL, "lanparty")

	authService := services.NewAuthService(repos.users, repos.registrations, tokens, uploader, bus, logger)
	userService := services.NewUserService(repos.users, repos.registrations, uploader, bus, logger)
	eventService := services.NewEventService(repos.events, repos.registrations, repos.tournaments, bus, logger)
	registrationService := services.NewRegistrationService(repos.tx, repos.registrations, repos.users, repos.events, repos.tournaments, repos.teams, bus, logger)
	tournamentService := services.NewTournamentService(repos.tx, repos.tournaments, repos.events, repos.teams, repos.registrations, uploader, bus, logger)
	teamService := services.NewTeamService(repos.tx, repos.teams, repos.tournaments, bus, logger)
	logger.Info("services initialized")

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Options{
		Tokens:         tokens,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SignInLimiter:  middleware.NewRateLimiter(cfg.LoginRatePerMinute),
	}, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, logger),
		User:         handlers.NewUserHandler(userService, logger),
		Event:        handlers.NewEventHandler(eventService, logger),
		Registration: handlers.NewRegistrationHandler(registrationService, logger),
		Tournament:   handlers.NewTournamentHandler(tournamentService, logger),
		Team:         handlers.NewTeamHandler(teamService, logger),
		Realtime:     handlers.NewRealtimeHandler(bus, originChecker(cfg.CORSAllowedOrigins), logger),
	})
	logger.Info("routes configured")

	// cancelled on shutdown so that open event streams end
	streams, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		BaseContext:  func(net.Listener) context.Context { return streams },
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		stopStreams()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
	return nil
}
