package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates all repository interfaces behind one dependency.
type Repository interface {
	// Assessment domain
	Assessment() AssessmentRepository
	AssessmentSettings() AssessmentSettingsRepository
	Question() QuestionRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// Course content domain
	Course() CourseRepository
	Lesson() LessonRepository
	Progress() ProgressRepository

	// User domain (read-only, backed by Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// IsNotFoundError reports whether err represents a missing row.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
