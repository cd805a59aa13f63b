package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/cache"
	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	db := a.getDB(tx)
	// Cache active attempts for performance
	cacheKey := fmt.Sprintf("id:%d", id)
	var attempt models.AssessmentAttempt

	err := a.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &attempt, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.AssessmentAttempt
		if err := db.WithContext(ctx).First(&dbAttempt, id).Error; err != nil {
			return nil, err
		}
		return &dbAttempt, nil
	})

	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.AssessmentAttempt, error) {
	db := a.getDB(tx)
	var attempt models.AssessmentAttempt
	if err := db.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.Settings").
		Preload("Answers").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.AssessmentAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID)
	return nil
}

func (a *AttemptPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.AttemptStatus) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return err
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, id)
	return nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, assessmentID uint, studentID string) (*models.AssessmentAttempt, error) {
	db := a.getDB(tx)
	var attempt models.AssessmentAttempt
	if err := db.WithContext(ctx).
		Where("assessment_id = ? AND student_id = ? AND status = ?", assessmentID, studentID, models.AttemptInProgress).
		Preload("Assessment").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.AssessmentAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.AssessmentAttempt{}).Where("assessment_id = ?", assessmentID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Student").Preload("Assessment").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.AssessmentAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.AssessmentAttempt
	var total int64

	filters.StudentID = &studentID
	query := db.WithContext(ctx).Model(&models.AssessmentAttempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Assessment").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) CountByAssessmentAndStudent(ctx context.Context, tx *gorm.DB, assessmentID uint, studentID string) (int, error) {
	count, err := a.helpers.CountAttemptsByStudent(ctx, assessmentID, studentID)
	return int(count), err
}

func (a *AttemptPostgreSQL) GetExpiredInProgress(ctx context.Context, tx *gorm.DB, asOf time.Time, limit int) ([]*models.AssessmentAttempt, error) {
	db := a.getDB(tx)
	var attempts []*models.AssessmentAttempt
	query := db.WithContext(ctx).
		Where("status = ? AND ends_at IS NOT NULL AND ends_at <= ?", models.AttemptInProgress, asOf).
		Order("ends_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get expired attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint) (*repositories.AttemptStats, error) {
	var stats repositories.AttemptStats

	totalAttempts, err := a.helpers.CountAttempts(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	statusBreakdown := make(map[models.AttemptStatus]int)
	statuses := []models.AttemptStatus{models.AttemptInProgress, models.AttemptCompleted, models.AttemptTimedOut, models.AttemptAbandoned}
	for _, status := range statuses {
		count, err := a.helpers.CountAttemptsByStatus(ctx, assessmentID, status)
		if err != nil {
			return nil, err
		}
		statusBreakdown[status] = int(count)
	}

	var avgScore, avgTimeSpent float64
	var completedCount, passedCount int64

	a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND status = ?", assessmentID, models.AttemptCompleted).
		Select("COALESCE(AVG(score), 0), COALESCE(AVG(time_spent), 0), COUNT(*), SUM(CASE WHEN passed THEN 1 ELSE 0 END)").
		Row().Scan(&avgScore, &avgTimeSpent, &completedCount, &passedCount)

	passRate := float64(0)
	if completedCount > 0 {
		passRate = float64(passedCount) / float64(completedCount)
	}

	stats = repositories.AttemptStats{
		TotalAttempts:    int(totalAttempts),
		StatusBreakdown:  statusBreakdown,
		AverageScore:     avgScore,
		AverageTimeSpent: int(avgTimeSpent),
		PassRate:         passRate,
	}

	return &stats, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== ANSWER REPOSITORY IMPLEMENTATION =====

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (ar *AnswerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	db := ar.getDB(tx)
	if err := db.WithContext(ctx).Create(answer).Error; err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	ar.cacheManager.Fast.Delete(ctx,
		fmt.Sprintf("attempt:%d:answers", answer.AttemptID),
		fmt.Sprintf("attempt:%d:question:%d", answer.AttemptID, answer.QuestionID),
	)

	return nil
}

func (ar *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	db := ar.getDB(tx)
	if err := db.WithContext(ctx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create answers batch: %w", err)
	}

	attemptIDs := make(map[uint]bool)
	for _, answer := range answers {
		attemptIDs[answer.AttemptID] = true
	}
	for attemptID := range attemptIDs {
		ar.cacheManager.Fast.InvalidatePattern(ctx, fmt.Sprintf("attempt:%d:*", attemptID))
	}

	return nil
}

func (ar *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	db := ar.getDB(tx)
	if err := db.WithContext(ctx).Save(answer).Error; err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}

	ar.cacheManager.Fast.Delete(ctx,
		fmt.Sprintf("attempt:%d:answers", answer.AttemptID),
		fmt.Sprintf("attempt:%d:question:%d", answer.AttemptID, answer.QuestionID),
	)

	return nil
}

func (ar *AnswerPostgreSQL) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	db := ar.getDB(tx)
	for _, answer := range answers {
		if err := db.WithContext(ctx).Save(answer).Error; err != nil {
			return fmt.Errorf("failed to update answer ID %d: %w", answer.ID, err)
		}
	}

	attemptIDs := make(map[uint]bool)
	for _, answer := range answers {
		attemptIDs[answer.AttemptID] = true
	}
	for attemptID := range attemptIDs {
		ar.cacheManager.Fast.InvalidatePattern(ctx, fmt.Sprintf("attempt:%d:*", attemptID))
	}

	return nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	db := ar.getDB(tx)
	cacheKey := fmt.Sprintf("attempt:%d:answers", attemptID)
	var answers []*models.StudentAnswer

	err := ar.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &answers, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAnswers []*models.StudentAnswer
		if err := db.WithContext(ctx).
			Where("attempt_id = ?", attemptID).
			Order("question_id ASC").
			Find(&dbAnswers).Error; err != nil {
			return nil, fmt.Errorf("failed to get answers by attempt: %w", err)
		}
		return dbAnswers, nil
	})

	return answers, err
}

func (ar *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.StudentAnswer, error) {
	db := ar.getDB(tx)
	var answer models.StudentAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

// CountAnswered counts answers that carry actual content, not the empty
// placeholders created at attempt start.
func (ar *AnswerPostgreSQL) CountAnswered(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	db := ar.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Where("attempt_id = ?", attemptID).
		Where("answer IS NOT NULL").
		Where("answer::text NOT IN ('null', '\"\"', '[]', '{}')").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count answered questions: %w", err)
	}
	return int(count), nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}
