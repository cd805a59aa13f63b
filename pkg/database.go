package pkg

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/futuretek/lms-service/internal/config"
	"github.com/futuretek/lms-service/internal/models"
)

// InitDatabase opens the Postgres connection, configures the pool and runs
// schema migration for the LMS models.
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLevel := logger.Warn
	if !cfg.IsProduction() {
		gormLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("Database connection established")
	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Assessment{},
		&models.Question{},
		&models.AssessmentAttempt{},
		&models.StudentAnswer{},
		&models.Lesson{},
		&models.LessonProgress{},
	)
}
