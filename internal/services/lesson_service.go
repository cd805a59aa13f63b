package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

type lessonService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewLessonService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) LessonService {
	return &lessonService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *lessonService) Create(ctx context.Context, req *CreateLessonRequest, creatorID string) (*LessonResponse, error) {
	s.logger.Info("Creating lesson", "title", req.Title, "course_id", req.CourseID, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := s.requireTeacherRole(ctx, creatorID, "create"); err != nil {
		return nil, err
	}

	exists, err := s.repo.Course().ExistsByID(ctx, s.db, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	if err := s.checkContentFields(ctx, req.ContentType, req.VideoURL, req.QuizAssessmentID); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		CourseID:         req.CourseID,
		Title:            req.Title,
		ContentType:      req.ContentType,
		DisplayOrder:     req.DisplayOrder,
		VideoURL:         req.VideoURL,
		VideoDuration:    req.VideoDuration,
		ArticleBody:      req.ArticleBody,
		QuizAssessmentID: req.QuizAssessmentID,
		CreatedBy:        creatorID,
	}
	if req.CompletionRules != nil {
		lesson.CompletionRules = datatypes.NewJSONType(buildCompletionRules(req.CompletionRules))
	}
	if lesson.DisplayOrder == 0 {
		count, err := s.repo.Lesson().CountByCourse(ctx, s.db, req.CourseID)
		if err != nil {
			return nil, fmt.Errorf("failed to count lessons: %w", err)
		}
		lesson.DisplayOrder = count + 1
	}

	if err := s.repo.Lesson().Create(ctx, nil, lesson); err != nil {
		return nil, fmt.Errorf("failed to create lesson: %w", err)
	}

	s.logger.Info("Lesson created", "lesson_id", lesson.ID, "course_id", lesson.CourseID)
	return &LessonResponse{Lesson: lesson, VideoSource: lesson.VideoSource()}, nil
}

func (s *lessonService) Update(ctx context.Context, id uint, req *UpdateLessonRequest, userID string) (*LessonResponse, error) {
	s.logger.Info("Updating lesson", "lesson_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	lesson, err := s.repo.Lesson().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	if err := s.canManage(ctx, lesson, userID, "update"); err != nil {
		return nil, err
	}

	applyLessonUpdate(lesson, req)

	if err := s.checkContentFields(ctx, lesson.ContentType, lesson.VideoURL, lesson.QuizAssessmentID); err != nil {
		return nil, err
	}

	if err := s.repo.Lesson().Update(ctx, nil, lesson); err != nil {
		return nil, fmt.Errorf("failed to update lesson: %w", err)
	}

	return &LessonResponse{Lesson: lesson, VideoSource: lesson.VideoSource()}, nil
}

func (s *lessonService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting lesson", "lesson_id", id, "user_id", userID)

	lesson, err := s.repo.Lesson().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrLessonNotFound
		}
		return fmt.Errorf("failed to get lesson: %w", err)
	}

	if err := s.canManage(ctx, lesson, userID, "delete"); err != nil {
		return err
	}

	return s.repo.Lesson().Delete(ctx, nil, id)
}

func (s *lessonService) ListByCourse(ctx context.Context, courseID uint, userID string) ([]*LessonResponse, error) {
	exists, err := s.repo.Course().ExistsByID(ctx, s.db, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	lessons, err := s.repo.Lesson().GetByCourse(ctx, s.db, courseID, repositories.LessonFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	responses := make([]*LessonResponse, len(lessons))
	for i, l := range lessons {
		responses[i] = &LessonResponse{Lesson: l, VideoSource: l.VideoSource()}
	}
	return responses, nil
}

// ===== HELPERS =====

// checkContentFields enforces that a lesson carries the content its type
// promises: videos need a URL, quizzes need an existing assessment.
func (s *lessonService) checkContentFields(ctx context.Context, contentType models.ContentType, videoURL *string, quizAssessmentID *uint) error {
	switch contentType {
	case models.ContentVideo:
		if videoURL == nil || *videoURL == "" {
			return NewBusinessRuleError("lesson_video_url_required", "video lessons need a video URL")
		}
	case models.ContentQuiz:
		if quizAssessmentID == nil {
			return NewBusinessRuleError("lesson_quiz_required", "quiz lessons need a linked assessment")
		}
		exists, err := s.repo.Assessment().ExistsByID(ctx, s.db, *quizAssessmentID)
		if err != nil {
			return fmt.Errorf("failed to check assessment: %w", err)
		}
		if !exists {
			return ErrAssessmentNotFound
		}
	}
	return nil
}

func (s *lessonService) requireTeacherRole(ctx context.Context, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return NewPermissionError(userID, 0, "lesson", action, "insufficient role permissions")
	}
	return nil
}

func (s *lessonService) canManage(ctx context.Context, lesson *models.Lesson, userID, action string) error {
	if lesson.CreatedBy == userID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, lesson.ID, "lesson", action, "not owner or insufficient permissions")
	}
	return nil
}

func applyLessonUpdate(lesson *models.Lesson, req *UpdateLessonRequest) {
	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.DisplayOrder != nil {
		lesson.DisplayOrder = *req.DisplayOrder
	}
	if req.VideoURL != nil {
		lesson.VideoURL = req.VideoURL
	}
	if req.VideoDuration != nil {
		lesson.VideoDuration = *req.VideoDuration
	}
	if req.ArticleBody != nil {
		lesson.ArticleBody = req.ArticleBody
	}
	if req.QuizAssessmentID != nil {
		lesson.QuizAssessmentID = req.QuizAssessmentID
	}
	if req.CompletionRules != nil {
		lesson.CompletionRules = datatypes.NewJSONType(buildCompletionRules(req.CompletionRules))
	}
}

func buildCompletionRules(req *CompletionRulesRequest) models.CompletionRules {
	return models.CompletionRules{
		RequireVideoWatched:     req.RequireVideoWatched,
		MinVideoWatchPercentage: req.MinVideoWatchPercentage,
		RequireResourcesViewed:  req.RequireResourcesViewed,
		RequireQuizPassed:       req.RequireQuizPassed,
	}
}
