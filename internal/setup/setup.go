// Package setup bootstraps the application's shared dependencies in order:
// configuration, logging, Redis, then the database with its migrations.
package setup

import (
	"context"
	"fmt"
	"log"

	"github.com/aurabot/aura/internal/database"
	"github.com/aurabot/aura/internal/database/migrations"
	"github.com/aurabot/aura/internal/redis"
	"github.com/aurabot/aura/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles the core dependencies every binary needs.
type App struct {
	Config       *config.Config  // Application configuration
	Logger       *zap.Logger     // Main application logger
	DBLogger     *zap.Logger     // Database-specific logger
	DB           database.Client // Database connection pool
	RedisManager *redis.Manager  // Redis connection manager
}

// InitializeApp bootstraps all application dependencies in the correct
// order, ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging comes up first so setup issues are captured
	logger, dbLogger, err := GetLoggers(
		logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
	}, nil
}

// Cleanup shuts down the components in reverse initialization order. Errors
// are logged rather than returned so every component gets its attempt.
func (s *App) Cleanup(_ context.Context) {
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Redis closes last since other components might still need it
	s.RedisManager.Close()
}

// checkAndRunMigrations connects to the database and prompts before running
// any pending migrations.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	var db database.Client

	unapplied := ms.Unapplied()
	if len(unapplied) > 0 {
		log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

		var response string

		_, _ = fmt.Scanln(&response)

		if response == "y" || response == "Y" {
			tempDB.Close()

			db, err = database.NewConnection(ctx, cfg, dbLogger, true)
		} else {
			log.Fatalf("Closing program due to incomplete migrations")
		}
	} else {
		db = tempDB
	}

	return db, err
}
