package database

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database selected by STORE_DRIVER.
// The memory driver has no database and is rejected here.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		system    string
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
		system = "postgresql"
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
		system = "sqlite"
	default:
		return nil, fmt.Errorf("store driver %q has no database", cfg.StoreDriver)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if cfg.Environment == "development" && cfg.LogLevel == "debug" {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if system == "sqlite" {
		// SQLite serializes writers; one connection avoids "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if cfg.OTelEnabled {
		if err := db.Use(telemetry.GORMTracingPlugin(system)); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	logger.Log.Info("Database connected", zap.String("driver", cfg.StoreDriver))
	return db, nil
}

// Migrate runs auto-migration for the engagement schema
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.EngagementEvent{},
		&models.PostEngagement{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds indexes gorm tags cannot express
func createIndexes(db *gorm.DB) error {
	stmts := []string{
		// Time-window scans: recent views, rate limit, retention purge
		"CREATE INDEX IF NOT EXISTS idx_events_kind_occurred ON engagement_events (kind, occurred_at)",
		// Leaderboard period tallies per owner
		"CREATE INDEX IF NOT EXISTS idx_events_owner_occurred ON engagement_events (owner_id, occurred_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
