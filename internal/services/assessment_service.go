package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

type assessmentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) AssessmentService {
	return &assessmentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD =====

func (s *assessmentService) Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error) {
	s.logger.Info("Creating assessment", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireTeacherRole(ctx, creatorID, "create"); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		CourseID:     req.CourseID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       models.AssessmentDraft,
		TimeLimit:    req.TimeLimit,
		PassingScore: req.PassingScore,
		MaxAttempts:  req.MaxAttempts,
		DueDate:      req.DueDate,
		CreatedBy:    creatorID,
	}
	if assessment.MaxAttempts == 0 {
		assessment.MaxAttempts = 1
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Assessment().Create(ctx, nil, assessment); err != nil {
			return fmt.Errorf("failed to create assessment: %w", err)
		}

		settings := defaultSettings(assessment.ID)
		applySettingsRequest(settings, req.Settings)
		if err := txRepo.AssessmentSettings().Upsert(ctx, nil, settings); err != nil {
			return fmt.Errorf("failed to create assessment settings: %w", err)
		}

		if len(req.Questions) > 0 {
			questions, err := buildQuestions(assessment.ID, creatorID, req.Questions)
			if err != nil {
				return err
			}
			if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment created", "assessment_id", assessment.ID, "creator_id", creatorID)
	return s.GetByIDWithDetails(ctx, assessment.ID, creatorID)
}

func (s *assessmentService) GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return s.buildResponse(ctx, assessment, userID), nil
}

func (s *assessmentService) GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	assessment, err := s.repo.Assessment().GetByIDWithDetails(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment with details: %w", err)
	}
	return s.buildResponse(ctx, assessment, userID), nil
}

func (s *assessmentService) Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error) {
	s.logger.Info("Updating assessment", "assessment_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "assessment", "update", "not owner or insufficient permissions")
	}

	// Scoring rules are frozen once students can take the assessment.
	if assessment.Status == models.AssessmentActive {
		if req.PassingScore != nil && *req.PassingScore != assessment.PassingScore {
			return nil, NewBusinessRuleError("assessment_active",
				"passing score cannot change while the assessment is active")
		}
		if req.TimeLimit != nil {
			return nil, NewBusinessRuleError("assessment_active",
				"time limit cannot change while the assessment is active")
		}
	}

	applyAssessmentUpdate(assessment, req)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Assessment().Update(ctx, nil, assessment); err != nil {
			return fmt.Errorf("failed to update assessment: %w", err)
		}

		if req.Settings != nil {
			settings, err := txRepo.AssessmentSettings().GetByAssessmentID(ctx, nil, id)
			if err != nil {
				if !repositories.IsNotFoundError(err) {
					return fmt.Errorf("failed to get settings: %w", err)
				}
				settings = defaultSettings(id)
			}
			applySettingsRequest(settings, req.Settings)
			if err := txRepo.AssessmentSettings().Upsert(ctx, nil, settings); err != nil {
				return fmt.Errorf("failed to update settings: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByIDWithDetails(ctx, id, userID)
}

func (s *assessmentService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting assessment", "assessment_id", id, "user_id", userID)

	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canAccess {
		return NewPermissionError(userID, id, "assessment", "delete", "not owner or insufficient permissions")
	}

	if assessment.Status == models.AssessmentActive {
		return NewBusinessRuleError("assessment_active", "active assessments cannot be deleted; archive first")
	}

	stats, err := s.repo.Attempt().GetStats(ctx, s.db, id)
	if err == nil && stats.TotalAttempts > 0 {
		return NewBusinessRuleError("assessment_has_attempts", "assessments with recorded attempts cannot be deleted")
	}

	return s.repo.Assessment().Delete(ctx, nil, id)
}

// ===== LISTS =====

func (s *assessmentService) List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Students only see active assessments; teachers see their own.
	switch user.Role {
	case models.RoleStudent:
		active := models.AssessmentActive
		filters.Status = &active
	case models.RoleTeacher:
		filters.CreatedBy = &userID
	}

	assessments, total, err := s.repo.Assessment().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	responses := make([]*AssessmentResponse, len(assessments))
	for i, a := range assessments {
		responses[i] = s.buildResponse(ctx, a, userID)
	}

	page := 1
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &AssessmentListResponse{
		Assessments: responses,
		Total:       total,
		Page:        page,
		Size:        len(responses),
	}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *assessmentService) Publish(ctx context.Context, id uint, userID string) error {
	return s.transitionStatus(ctx, id, userID, models.AssessmentActive, "publish")
}

func (s *assessmentService) Archive(ctx context.Context, id uint, userID string) error {
	return s.transitionStatus(ctx, id, userID, models.AssessmentArchived, "archive")
}

func (s *assessmentService) transitionStatus(ctx context.Context, id uint, userID string, target models.AssessmentStatus, action string) error {
	s.logger.Info("Changing assessment status",
		"assessment_id", id, "target", target, "user_id", userID)

	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canAccess {
		return NewPermissionError(userID, id, "assessment", action, "not owner or insufficient permissions")
	}

	if assessment.Status == models.AssessmentArchived {
		return NewBusinessRuleError("assessment_archived", "archived assessments cannot change status")
	}

	if target == models.AssessmentActive {
		count, err := s.repo.Question().CountByAssessment(ctx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		if count == 0 {
			return NewBusinessRuleError("assessment_empty", "assessment needs at least one question before publishing")
		}
	}

	assessment.Status = target
	return s.repo.Assessment().Update(ctx, nil, assessment)
}

// ===== PERMISSION CHECKS =====

func (s *assessmentService) CanAccess(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssessmentNotFound
		}
		return false, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return true, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role == models.RoleAdmin, nil
}

func (s *assessmentService) CanTake(ctx context.Context, assessmentID uint, studentID string) (bool, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, s.db, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssessmentNotFound
		}
		return false, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.Status != models.AssessmentActive {
		return false, nil
	}
	if assessment.DueDate != nil && time.Now().After(*assessment.DueDate) {
		return false, nil
	}

	count, err := s.repo.Attempt().CountByAssessmentAndStudent(ctx, s.db, assessmentID, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	if assessment.MaxAttempts > 0 && count >= assessment.MaxAttempts {
		// An open attempt can still be resumed
		active, err := s.repo.Attempt().GetActiveAttempt(ctx, s.db, assessmentID, studentID)
		if err != nil || active == nil {
			return false, nil
		}
	}

	return true, nil
}

// ===== HELPERS =====

func (s *assessmentService) requireTeacherRole(ctx context.Context, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "assessment", action, "insufficient role permissions")
	}
	return nil
}

func (s *assessmentService) buildResponse(ctx context.Context, assessment *models.Assessment, userID string) *AssessmentResponse {
	response := &AssessmentResponse{Assessment: assessment}

	response.CanEdit = assessment.CreatedBy == userID
	if canTake, err := s.CanTake(ctx, assessment.ID, userID); err == nil {
		response.CanTake = canTake
	}

	return response
}

func defaultSettings(assessmentID uint) *models.AssessmentSettings {
	return &models.AssessmentSettings{
		AssessmentID: assessmentID,
		ShowResults:  true,
		AllowRetake:  true,
	}
}

func applySettingsRequest(settings *models.AssessmentSettings, req *AssessmentSettingsRequest) {
	if req == nil {
		return
	}
	if req.ShuffleQuestions != nil {
		settings.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShowResults != nil {
		settings.ShowResults = *req.ShowResults
	}
	if req.ShowCorrectAnswers != nil {
		settings.ShowCorrectAnswers = *req.ShowCorrectAnswers
	}
	if req.AllowRetake != nil {
		settings.AllowRetake = *req.AllowRetake
	}
}

func applyAssessmentUpdate(assessment *models.Assessment, req *UpdateAssessmentRequest) {
	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.Description != nil {
		assessment.Description = req.Description
	}
	if req.TimeLimit != nil {
		assessment.TimeLimit = req.TimeLimit
	}
	if req.PassingScore != nil {
		assessment.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		assessment.MaxAttempts = *req.MaxAttempts
	}
	if req.DueDate != nil {
		assessment.DueDate = req.DueDate
	}
}

func buildQuestions(assessmentID uint, creatorID string, reqs []CreateQuestionRequest) ([]*models.Question, error) {
	questions := make([]*models.Question, len(reqs))
	for i, qr := range reqs {
		content, err := json.Marshal(qr.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal content for question %d: %w", i, err)
		}

		difficulty := qr.Difficulty
		if difficulty == "" {
			difficulty = models.DifficultyMedium
		}
		displayOrder := qr.DisplayOrder
		if displayOrder == 0 {
			displayOrder = i + 1
		}

		questions[i] = &models.Question{
			AssessmentID:   assessmentID,
			Type:           qr.Type,
			Text:           qr.Text,
			Points:         qr.Points,
			NegativePoints: qr.NegativePoints,
			DisplayOrder:   displayOrder,
			Difficulty:     difficulty,
			Content:        content,
			Explanation:    qr.Explanation,
			CreatedBy:      creatorID,
		}
	}
	return questions, nil
}
