package repositories

import (
	"context"

	"github.com/futuretek/lms-service/internal/models"
	"gorm.io/gorm"
)

// CourseRepository interface for course operations
type CourseRepository interface {
	Create(ctx context.Context, tx *gorm.DB, course *models.Course) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetByIDWithLessons(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	Update(ctx context.Context, tx *gorm.DB, course *models.Course) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

// LessonRepository interface for lesson operations
type LessonRepository interface {
	Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	GetByCourse(ctx context.Context, tx *gorm.DB, courseID uint, filters LessonFilters) ([]*models.Lesson, error)
	CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int, error)
}

// ProgressRepository interface for lesson progress operations.
// Progress writes are last-write-wins; there is no optimistic locking.
type ProgressRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, progress *models.LessonProgress) error
	GetByLessonAndStudent(ctx context.Context, tx *gorm.DB, lessonID uint, studentID string) (*models.LessonProgress, error)
	GetByCourseAndStudent(ctx context.Context, tx *gorm.DB, courseID uint, studentID string, filters ProgressFilters) ([]*models.LessonProgress, error)

	// MarkCompleted sets the completion flag once; it never reverts it.
	MarkCompleted(ctx context.Context, tx *gorm.DB, lessonID uint, studentID string) error
	CountCompleted(ctx context.Context, tx *gorm.DB, courseID uint, studentID string) (int, error)
	GetCourseStats(ctx context.Context, tx *gorm.DB, courseID uint, studentID string) (*CourseProgressStats, error)
}
