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

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AssessmentPostgreSQL) Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	a.cacheManager.Assessment.Delete(ctx, "list:*")
	return nil
}

func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("id:%d", id)
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cacheKey, &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		if err := db.WithContext(ctx).First(&dbAssessment, id).Error; err != nil {
			return nil, err
		}
		return &dbAssessment, nil
	})

	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (a *AssessmentPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	db := a.getDB(tx)
	var assessment models.Assessment
	if err := db.WithContext(ctx).
		Preload("Settings").
		Preload("Questions", func(q *gorm.DB) *gorm.DB {
			return q.Order("questions.display_order ASC")
		}).
		First(&assessment, id).Error; err != nil {
		return nil, err
	}

	assessment.QuestionCount = len(assessment.Questions)
	for _, q := range assessment.Questions {
		assessment.TotalPoints += q.Points
	}

	return &assessment, nil
}

func (a *AssessmentPostgreSQL) Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(assessment).Error; err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	a.cacheManager.Assessment.Delete(ctx,
		fmt.Sprintf("id:%d", assessment.ID),
		fmt.Sprintf("details:%d", assessment.ID),
	)
	return nil
}

func (a *AssessmentPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Delete(&models.Assessment{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	a.cacheManager.Assessment.Delete(ctx, fmt.Sprintf("id:%d", id))
	return nil
}

func (a *AssessmentPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	db := a.getDB(tx)
	var assessments []*models.Assessment
	var total int64

	query := db.WithContext(ctx).Model(&models.Assessment{})
	query = a.helpers.ApplyAssessmentFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Settings").Find(&assessments).Error; err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}

func (a *AssessmentPostgreSQL) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CreatedBy = &creatorID
	return a.List(ctx, tx, filters)
}

func (a *AssessmentPostgreSQL) GetByCourse(ctx context.Context, tx *gorm.DB, courseID uint, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CourseID = &courseID
	return a.List(ctx, tx, filters)
}

func (a *AssessmentPostgreSQL) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := a.getDB(tx)
	cacheKey := fmt.Sprintf("assessment:%d", id)

	exists, err := a.cacheManager.Exists.GetString(ctx, cacheKey)
	if err == nil {
		return exists == "true", nil
	}

	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}

	a.cacheManager.Exists.SetString(ctx, cacheKey, fmt.Sprintf("%t", count > 0), cache.ExistsCacheConfig.TTL)
	return count > 0, nil
}

func (a *AssessmentPostgreSQL) GetTotalPoints(ctx context.Context, tx *gorm.DB, id uint) (int, error) {
	db := a.getDB(tx)
	var total int64
	err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("assessment_id = ?", id).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return int(total), err
}

func (a *AssessmentPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, id uint) (*repositories.AssessmentStats, error) {
	db := a.getDB(tx)
	stats := &repositories.AssessmentStats{}

	totalAttempts, err := a.helpers.CountAttempts(ctx, id)
	if err != nil {
		return nil, err
	}
	stats.TotalAttempts = int(totalAttempts)

	completed, err := a.helpers.CountAttemptsByStatus(ctx, id, models.AttemptCompleted)
	if err != nil {
		return nil, err
	}
	stats.CompletedAttempts = int(completed)

	var avgScore, avgTimeSpent float64
	var passedCount int64
	db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND status = ?", id, models.AttemptCompleted).
		Select("COALESCE(AVG(score), 0), COALESCE(AVG(time_spent), 0), SUM(CASE WHEN passed THEN 1 ELSE 0 END)").
		Row().Scan(&avgScore, &avgTimeSpent, &passedCount)

	stats.AverageScore = avgScore
	stats.AverageTimeSpent = int(avgTimeSpent)
	if completed > 0 {
		stats.PassRate = float64(passedCount) / float64(completed)
	}

	var qCount int64
	db.WithContext(ctx).Model(&models.Question{}).Where("assessment_id = ?", id).Count(&qCount)
	stats.QuestionCount = int(qCount)

	totalPoints, err := a.GetTotalPoints(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	stats.TotalPoints = totalPoints

	return stats, nil
}

func (a *AssessmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== ASSESSMENT SETTINGS REPOSITORY =====

type AssessmentSettingsPostgreSQL struct {
	db *gorm.DB
}

func NewAssessmentSettingsPostgreSQL(db *gorm.DB) repositories.AssessmentSettingsRepository {
	return &AssessmentSettingsPostgreSQL{db: db}
}

func (s *AssessmentSettingsPostgreSQL) GetByAssessmentID(ctx context.Context, tx *gorm.DB, assessmentID uint) (*models.AssessmentSettings, error) {
	db := s.getDB(tx)
	var settings models.AssessmentSettings
	if err := db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *AssessmentSettingsPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, settings *models.AssessmentSettings) error {
	db := s.getDB(tx)
	return db.WithContext(ctx).Save(settings).Error
}

func (s *AssessmentSettingsPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// ===== QUESTION REPOSITORY =====

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	q.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	q.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)
	question, err := q.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	q.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	db := q.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}
	q.invalidateAssessmentQuestions(ctx, questions[0].AssessmentID)
	return nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	db := q.getDB(tx)
	var questions []*models.Question
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("assessment:%d:questions", assessmentID)
	var questions []*models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := db.WithContext(ctx).
			Where("assessment_id = ?", assessmentID).
			Order("display_order ASC, id ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, err
		}
		return dbQuestions, nil
	})

	return questions, err
}

func (q *QuestionPostgreSQL) CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	db := q.getDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error
	return int(count), err
}

func (q *QuestionPostgreSQL) invalidateAssessmentQuestions(ctx context.Context, assessmentID uint) {
	q.cacheManager.Question.Delete(ctx, fmt.Sprintf("assessment:%d:questions", assessmentID))
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
