package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/events"
	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

type progressService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewProgressService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) ProgressService {
	return &progressService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== LESSON READS =====

func (s *progressService) GetLesson(ctx context.Context, lessonID uint, studentID string) (*LessonResponse, error) {
	lesson, err := s.repo.Lesson().GetByID(ctx, s.db, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	response := &LessonResponse{
		Lesson:      lesson,
		VideoSource: lesson.VideoSource(),
	}

	progress, err := s.repo.Progress().GetByLessonAndStudent(ctx, s.db, lessonID, studentID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get progress: %w", err)
		}
		// First open; no progress row yet
		return response, nil
	}

	response.Progress = progress
	return response, nil
}

// ===== PROGRESS WRITES =====

// UpdateProgress records playback telemetry. Writes are last-write-wins
// on the resume position and watch duration; the watched percentage never
// decreases (enforced by the repository upsert).
func (s *progressService) UpdateProgress(ctx context.Context, req *UpdateProgressRequest, studentID string) (*ProgressResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	lesson, err := s.repo.Lesson().GetByID(ctx, s.db, req.LessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	progress := &models.LessonProgress{
		LessonID:               lesson.ID,
		StudentID:              studentID,
		CourseID:               lesson.CourseID,
		LastWatchedPosition:    req.LastWatchedPosition,
		VideoPercentageWatched: req.VideoPercentageWatched,
		WatchDuration:          req.WatchDuration,
	}

	if err := s.repo.Progress().Upsert(ctx, nil, progress); err != nil {
		return nil, fmt.Errorf("failed to upsert progress: %w", err)
	}

	current, err := s.repo.Progress().GetByLessonAndStudent(ctx, s.db, lesson.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload progress: %w", err)
	}

	s.publishProgressUpdated(ctx, lesson, current)

	return &ProgressResponse{
		LessonProgress: current,
		CanComplete:    s.CanComplete(ctx, lesson, current) == nil,
	}, nil
}

// ===== COMPLETION =====

func (s *progressService) MarkComplete(ctx context.Context, lessonID uint, studentID string) (*ProgressResponse, error) {
	s.logger.Info("Marking lesson complete", "lesson_id", lessonID, "student_id", studentID)

	lesson, err := s.repo.Lesson().GetByID(ctx, s.db, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	progress, err := s.repo.Progress().GetByLessonAndStudent(ctx, s.db, lessonID, studentID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get progress: %w", err)
		}
		// Completing without prior telemetry is fine for lessons with no
		// watch requirement; the gate below decides.
		progress = &models.LessonProgress{
			LessonID:  lessonID,
			StudentID: studentID,
			CourseID:  lesson.CourseID,
		}
	}

	if progress.IsCompleted {
		return nil, ErrProgressAlreadyCompleted
	}

	if err := s.CanComplete(ctx, lesson, progress); err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if progress.ID == 0 {
			if err := txRepo.Progress().Upsert(ctx, nil, progress); err != nil {
				return fmt.Errorf("failed to create progress row: %w", err)
			}
		}
		return txRepo.Progress().MarkCompleted(ctx, nil, lessonID, studentID)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// MarkCompleted guards on is_completed = false; a lost race
			// means someone else finished first.
			return nil, ErrProgressAlreadyCompleted
		}
		return nil, fmt.Errorf("failed to mark lesson complete: %w", err)
	}

	current, err := s.repo.Progress().GetByLessonAndStudent(ctx, s.db, lessonID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload progress: %w", err)
	}

	s.publishLessonCompleted(ctx, lesson, studentID)
	s.logger.Info("Lesson completed", "lesson_id", lessonID, "student_id", studentID)

	return &ProgressResponse{LessonProgress: current, CanComplete: false}, nil
}

// CanComplete applies the lesson's completion rules to the given progress
// without writing anything. A nil error means completion is allowed.
func (s *progressService) CanComplete(ctx context.Context, lesson *models.Lesson, progress *models.LessonProgress) error {
	rules := lesson.CompletionRules.Data()

	if rules.RequireVideoWatched && lesson.ContentType == models.ContentVideo {
		// External embeds expose no playback telemetry, so the watch
		// requirement is waived for them.
		if !lesson.IsExternalEmbed() {
			watched := 0
			if progress != nil {
				watched = progress.VideoPercentageWatched
			}
			if watched < rules.MinWatchPercentage() {
				return ErrCompletionRequirementsNotMet
			}
		}
	}

	if rules.RequireResourcesViewed {
		// Resource tracking is not recorded per student yet; the rule is
		// accepted but does not block completion.
		s.logger.Debug("Resource view requirement skipped", "lesson_id", lesson.ID)
	}

	if rules.RequireQuizPassed && lesson.QuizAssessmentID != nil {
		passed, err := s.hasPassedQuiz(ctx, *lesson.QuizAssessmentID, progress)
		if err != nil {
			return err
		}
		if !passed {
			return ErrCompletionRequirementsNotMet
		}
	}

	return nil
}

func (s *progressService) hasPassedQuiz(ctx context.Context, assessmentID uint, progress *models.LessonProgress) (bool, error) {
	if progress == nil || progress.StudentID == "" {
		return false, nil
	}

	studentID := progress.StudentID
	completed := models.AttemptCompleted
	attempts, _, err := s.repo.Attempt().GetByAssessment(ctx, s.db, assessmentID, repositories.AttemptFilters{
		Status:    &completed,
		StudentID: &studentID,
		Limit:     50,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check quiz attempts: %w", err)
	}

	for _, attempt := range attempts {
		if attempt.IsGraded && attempt.Passed {
			return true, nil
		}
	}
	return false, nil
}

// ===== COURSE ROLLUP =====

func (s *progressService) GetCourseProgress(ctx context.Context, courseID uint, studentID string) (*models.CourseProgress, error) {
	exists, err := s.repo.Course().ExistsByID(ctx, s.db, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	stats, err := s.repo.Progress().GetCourseStats(ctx, s.db, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course stats: %w", err)
	}

	rows, err := s.repo.Progress().GetByCourseAndStudent(ctx, s.db, courseID, studentID, repositories.ProgressFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}

	lessons := make([]models.LessonProgress, len(rows))
	for i, row := range rows {
		lessons[i] = *row
	}

	return &models.CourseProgress{
		CourseID:         courseID,
		StudentID:        studentID,
		TotalLessons:     stats.TotalLessons,
		CompletedLessons: stats.CompletedLessons,
		OverallProgress:  models.ComputeOverallProgress(stats.CompletedLessons, stats.TotalLessons),
		Lessons:          lessons,
	}, nil
}

// ===== EVENTS =====

func (s *progressService) publishProgressUpdated(ctx context.Context, lesson *models.Lesson, progress *models.LessonProgress) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.EventProgressUpdated, events.ProgressUpdatedEvent{
		LessonID:               lesson.ID,
		CourseID:               lesson.CourseID,
		StudentID:              progress.StudentID,
		LastWatchedPosition:    progress.LastWatchedPosition,
		VideoPercentageWatched: progress.VideoPercentageWatched,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish progress event",
			"lesson_id", lesson.ID, "student_id", progress.StudentID, "error", err)
	}
}

func (s *progressService) publishLessonCompleted(ctx context.Context, lesson *models.Lesson, studentID string) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(events.EventLessonCompleted, events.LessonCompletedEvent{
		LessonID:  lesson.ID,
		CourseID:  lesson.CourseID,
		StudentID: studentID,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish lesson completed event",
			"lesson_id", lesson.ID, "student_id", studentID, "error", err)
	}
}
