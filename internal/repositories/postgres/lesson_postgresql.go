package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/cache"
	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

// ===== COURSE REPOSITORY =====

type CoursePostgreSQL struct {
	db *gorm.DB
}

func NewCoursePostgreSQL(db *gorm.DB) repositories.CourseRepository {
	return &CoursePostgreSQL{db: db}
}

func (c *CoursePostgreSQL) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	db := c.getDB(tx)
	return db.WithContext(ctx).Create(course).Error
}

func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	db := c.getDB(tx)
	var course models.Course
	if err := db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *CoursePostgreSQL) GetByIDWithLessons(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	db := c.getDB(tx)
	var course models.Course
	if err := db.WithContext(ctx).
		Preload("Lessons", func(q *gorm.DB) *gorm.DB {
			return q.Order("lessons.display_order ASC")
		}).
		First(&course, id).Error; err != nil {
		return nil, err
	}
	course.LessonCount = len(course.Lessons)
	return &course, nil
}

func (c *CoursePostgreSQL) Update(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	db := c.getDB(tx)
	return db.WithContext(ctx).Save(course).Error
}

func (c *CoursePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := c.getDB(tx)
	return db.WithContext(ctx).Delete(&models.Course{}, id).Error
}

func (c *CoursePostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := c.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (c *CoursePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// ===== LESSON REPOSITORY =====

type LessonPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewLessonPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.LessonRepository {
	return &LessonPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (l *LessonPostgreSQL) Create(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	db := l.getDB(tx)
	if err := db.WithContext(ctx).Create(lesson).Error; err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	l.cacheManager.InvalidateLesson(ctx, lesson.ID, lesson.CourseID)
	return nil
}

func (l *LessonPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	db := l.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var lesson models.Lesson

	err := l.cacheManager.Lesson.CacheOrExecute(ctx, cacheKey, &lesson, cache.LessonCacheConfig.TTL, func() (interface{}, error) {
		var dbLesson models.Lesson
		if err := db.WithContext(ctx).First(&dbLesson, id).Error; err != nil {
			return nil, err
		}
		return &dbLesson, nil
	})

	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (l *LessonPostgreSQL) Update(ctx context.Context, tx *gorm.DB, lesson *models.Lesson) error {
	db := l.getDB(tx)
	if err := db.WithContext(ctx).Save(lesson).Error; err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	l.cacheManager.InvalidateLesson(ctx, lesson.ID, lesson.CourseID)
	return nil
}

func (l *LessonPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := l.getDB(tx)
	lesson, err := l.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(&models.Lesson{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	l.cacheManager.InvalidateLesson(ctx, id, lesson.CourseID)
	return nil
}

func (l *LessonPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, courseID uint, filters repositories.LessonFilters) ([]*models.Lesson, error) {
	db := l.getDB(tx)
	var lessons []*models.Lesson

	query := db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("display_order ASC, id ASC")
	if filters.ContentType != nil {
		query = query.Where("content_type = ?", *filters.ContentType)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to get lessons by course: %w", err)
	}
	return lessons, nil
}

func (l *LessonPostgreSQL) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int, error) {
	db := l.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Lesson{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return int(count), err
}

func (l *LessonPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return l.db
}
