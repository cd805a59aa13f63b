package repositories

import (
	"context"

	"github.com/futuretek/lms-service/internal/models"
	"gorm.io/gorm"
)

// AssessmentRepository interface for assessment operations
type AssessmentRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) // Include settings, questions
	Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Query operations
	List(ctx context.Context, tx *gorm.DB, filters AssessmentFilters) ([]*models.Assessment, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters AssessmentFilters) ([]*models.Assessment, int64, error)
	GetByCourse(ctx context.Context, tx *gorm.DB, courseID uint, filters AssessmentFilters) ([]*models.Assessment, int64, error)

	// Validation and checks
	ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
	GetTotalPoints(ctx context.Context, tx *gorm.DB, id uint) (int, error)

	// Statistics
	GetStats(ctx context.Context, tx *gorm.DB, id uint) (*AssessmentStats, error)
}

// AssessmentSettingsRepository interface for per-assessment settings
type AssessmentSettingsRepository interface {
	GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID uint) (*models.AssessmentSettings, error)
	Upsert(ctx context.Context, tx *gorm.DB, settings *models.AssessmentSettings) error
}

// QuestionRepository interface for question operations
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// Bulk operations
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)

	// Assessment-scoped queries
	GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error)
	CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
}
