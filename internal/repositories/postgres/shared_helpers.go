package postgres

import (
	"context"
	"time"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"gorm.io/gorm"
)

// SharedHelpers contains common database operations
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// CountAttempts counts attempts for an assessment
func (h *SharedHelpers) CountAttempts(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error
	return count, err
}

// CountAttemptsByStudent counts attempts by student for an assessment
func (h *SharedHelpers) CountAttemptsByStudent(ctx context.Context, assessmentID uint, studentID string) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).
		Count(&count).Error
	return count, err
}

// CountAttemptsByStatus counts attempts by status
func (h *SharedHelpers) CountAttemptsByStatus(ctx context.Context, assessmentID uint, status models.AttemptStatus) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND status = ?", assessmentID, status).
		Count(&count).Error
	return count, err
}

// GetAssessmentBasicInfo gets basic assessment info
func (h *SharedHelpers) GetAssessmentBasicInfo(ctx context.Context, assessmentID uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := h.db.WithContext(ctx).
		Select("id, status, max_attempts, due_date, passing_score, time_limit").
		First(&assessment, assessmentID).Error
	return &assessment, err
}

// ApplyAssessmentFilters applies common filters to assessment queries
func (h *SharedHelpers) ApplyAssessmentFilters(query *gorm.DB, filters repositories.AssessmentFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyAttemptFilters applies common filters to attempt queries
func (h *SharedHelpers) ApplyAttemptFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	// Whitelist allowed sort columns
	allowedSortColumns := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"id":         true,
		"title":      true,
		"status":     true,
		"score":      true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "ASC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	return query
}

// ValidateAttemptEligibility checks if student can start a new attempt
func (h *SharedHelpers) ValidateAttemptEligibility(ctx context.Context, assessmentID uint, studentID string) (*repositories.AttemptValidation, error) {
	validation := &repositories.AttemptValidation{CanStart: true}

	assessment, err := h.GetAssessmentBasicInfo(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if assessment.Status != models.AssessmentActive {
		validation.CanStart = false
		validation.Reason = "Assessment is not active"
		return validation, nil
	}

	if assessment.DueDate != nil && time.Now().After(*assessment.DueDate) {
		validation.CanStart = false
		validation.Reason = "Assessment due date has passed"
		return validation, nil
	}

	if assessment.MaxAttempts > 0 {
		attemptCount, err := h.CountAttemptsByStudent(ctx, assessmentID, studentID)
		if err != nil {
			return nil, err
		}
		if attemptCount >= int64(assessment.MaxAttempts) {
			validation.CanStart = false
			validation.Reason = "Maximum attempts reached"
			return validation, nil
		}
	}

	return validation, nil
}
