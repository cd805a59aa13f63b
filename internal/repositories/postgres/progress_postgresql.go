package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

// Upsert writes progress last-write-wins. The watched percentage is kept
// monotonic at the database level and a completed row never reverts, so
// out-of-order fire-and-forget writes cannot lose ground.
func (p *ProgressPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, progress *models.LessonProgress) error {
	db := p.getDB(tx)
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lesson_id"}, {Name: "student_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_watched_position":    progress.LastWatchedPosition,
			"video_percentage_watched": gorm.Expr("GREATEST(lesson_progresses.video_percentage_watched, ?)", progress.VideoPercentageWatched),
			"watch_duration":           progress.WatchDuration,
			"updated_at":               time.Now(),
		}),
	}).Create(progress).Error
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

func (p *ProgressPostgreSQL) GetByLessonAndStudent(ctx context.Context, tx *gorm.DB, lessonID uint, studentID string) (*models.LessonProgress, error) {
	db := p.getDB(tx)
	var progress models.LessonProgress
	if err := db.WithContext(ctx).
		Where("lesson_id = ? AND student_id = ?", lessonID, studentID).
		First(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (p *ProgressPostgreSQL) GetByCourseAndStudent(ctx context.Context, tx *gorm.DB, courseID uint, studentID string, filters repositories.ProgressFilters) ([]*models.LessonProgress, error) {
	db := p.getDB(tx)
	var rows []*models.LessonProgress

	query := db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Order("lesson_id ASC")
	if filters.IsCompleted != nil {
		query = query.Where("is_completed = ?", *filters.IsCompleted)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get course progress: %w", err)
	}
	return rows, nil
}

func (p *ProgressPostgreSQL) MarkCompleted(ctx context.Context, tx *gorm.DB, lessonID uint, studentID string) error {
	db := p.getDB(tx)
	now := time.Now()
	result := db.WithContext(ctx).
		Model(&models.LessonProgress{}).
		Where("lesson_id = ? AND student_id = ? AND is_completed = false", lessonID, studentID).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark lesson complete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (p *ProgressPostgreSQL) CountCompleted(ctx context.Context, tx *gorm.DB, courseID uint, studentID string) (int, error) {
	db := p.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.LessonProgress{}).
		Where("course_id = ? AND student_id = ? AND is_completed = true", courseID, studentID).
		Count(&count).Error
	return int(count), err
}

func (p *ProgressPostgreSQL) GetCourseStats(ctx context.Context, tx *gorm.DB, courseID uint, studentID string) (*repositories.CourseProgressStats, error) {
	db := p.getDB(tx)
	stats := &repositories.CourseProgressStats{}

	var total int64
	if err := db.WithContext(ctx).
		Model(&models.Lesson{}).
		Where("course_id = ?", courseID).
		Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count course lessons: %w", err)
	}
	stats.TotalLessons = int(total)

	completed, err := p.CountCompleted(ctx, tx, courseID, studentID)
	if err != nil {
		return nil, err
	}
	stats.CompletedLessons = completed

	return stats, nil
}

func (p *ProgressPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}
