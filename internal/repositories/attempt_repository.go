package repositories

import (
	"context"
	"time"

	"github.com/futuretek/lms-service/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository interface for assessment attempt operations
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) // Include answers, assessment
	Update(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error

	// Query operations
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, assessmentID uint, studentID string) (*models.AssessmentAttempt, error)
	GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters AttemptFilters) ([]*models.AssessmentAttempt, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.AssessmentAttempt, int64, error)
	CountByAssessmentAndStudent(ctx context.Context, tx *gorm.DB, assessmentID uint, studentID string) (int, error)

	// Timed-out attempts still marked in progress, for the sweeper.
	GetExpiredInProgress(ctx context.Context, tx *gorm.DB, asOf time.Time, limit int) ([]*models.AssessmentAttempt, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint) (*AttemptStats, error)
}

// AnswerRepository interface for student answer operations
type AnswerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error
	Update(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error
	UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error

	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error)
	CountAnswered(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error)
}
