package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/futuretek/lms-service/internal/events"
	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== CORE ATTEMPT LIFECYCLE =====

// Start begins a new attempt, or returns the open one for this student so a
// reload resumes instead of burning an attempt.
func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting assessment attempt",
		"assessment_id", req.AssessmentID,
		"student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByIDWithDetails(ctx, s.db, req.AssessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	// Resume the open attempt if one exists
	current, err := s.repo.Attempt().GetActiveAttempt(ctx, s.db, req.AssessmentID, studentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check active attempt: %w", err)
	}
	if current != nil {
		if current.IsExpired(time.Now()) {
			if err := s.HandleTimeout(ctx, current.ID); err != nil {
				s.logger.Error("Failed to close expired attempt", "attempt_id", current.ID, "error", err)
			}
		} else {
			s.logger.Info("Resuming existing attempt", "attempt_id", current.ID)
			return s.buildAttemptResponse(ctx, current, studentID, true)
		}
	}

	if err := s.checkStartEligibility(ctx, assessment, studentID); err != nil {
		return nil, err
	}

	var attempt *models.AssessmentAttempt
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		count, err := txRepo.Attempt().CountByAssessmentAndStudent(ctx, nil, assessment.ID, studentID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}

		now := time.Now()
		attempt = &models.AssessmentAttempt{
			AssessmentID:   assessment.ID,
			StudentID:      studentID,
			AttemptNumber:  count + 1,
			Status:         models.AttemptInProgress,
			StartedAt:      &now,
			TotalQuestions: len(assessment.Questions),
		}

		// The deadline is fixed once here; untimed assessments have none.
		if assessment.IsTimed() {
			endsAt := now.Add(time.Duration(*assessment.TimeLimit) * time.Minute)
			attempt.EndsAt = &endsAt
		}

		if err := txRepo.Attempt().Create(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}

		return s.initializeAnswers(ctx, txRepo, attempt, assessment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}

	s.logger.Info("Assessment attempt started",
		"attempt_id", attempt.ID,
		"assessment_id", assessment.ID,
		"attempt_number", attempt.AttemptNumber,
		"student_id", studentID)

	return s.buildAttemptResponse(ctx, attempt, studentID, true)
}

// SaveAnswer upserts one answer keyed by question ID; re-answering replaces.
func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "save_answer")
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}

	if attempt.IsExpired(time.Now()) {
		if err := s.HandleTimeout(ctx, attemptID); err != nil {
			s.logger.Error("Failed to handle timeout on answer save", "attempt_id", attemptID, "error", err)
		}
		return ErrAttemptTimeExpired
	}

	if err := s.upsertAnswer(ctx, s.repo, attemptID, *req); err != nil {
		return err
	}

	s.logger.Debug("Answer saved",
		"attempt_id", attemptID,
		"question_id", req.QuestionID)

	return nil
}

// SaveAndExit persists answers and leaves the attempt open. The timer keeps
// running; the student can come back until the deadline.
func (s *attemptService) SaveAndExit(ctx context.Context, attemptID uint, req *SaveAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Saving attempt for exit",
		"attempt_id", attemptID,
		"student_id", studentID,
		"answers_count", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "save_and_exit")
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	if attempt.IsExpired(time.Now()) {
		if err := s.HandleTimeout(ctx, attemptID); err != nil {
			s.logger.Error("Failed to handle timeout on save-and-exit", "attempt_id", attemptID, "error", err)
		}
		return nil, ErrAttemptTimeExpired
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for _, answerReq := range req.Answers {
			if err := s.upsertAnswer(ctx, txRepo, attemptID, answerReq); err != nil {
				return err
			}
		}

		if req.TimeSpent != nil {
			attempt.TimeSpent = *req.TimeSpent
		}
		reason := models.AttemptEndReasonSavedExit
		attempt.EndReason = &reason

		return txRepo.Attempt().Update(ctx, nil, attempt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	return s.buildAttemptResponse(ctx, attempt, studentID, false)
}

// Submit finalizes the attempt. Manual submits are gated on every question
// having a non-empty answer; the timeout path grades whatever is there.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting assessment attempt",
		"attempt_id", attemptID,
		"student_id", studentID,
		"end_reason", req.EndReason)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "submit")
	if err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptCompleted || attempt.Status == models.AttemptTimedOut {
		return nil, ErrAttemptAlreadySubmitted
	}

	now := time.Now()
	timedOut := req.EndReason == models.AttemptEndReasonTimeout || attempt.IsExpired(now)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		for _, answerReq := range req.Answers {
			if err := s.upsertAnswer(ctx, txRepo, attemptID, answerReq); err != nil {
				return err
			}
		}

		answered, err := txRepo.Answer().CountAnswered(ctx, nil, attemptID)
		if err != nil {
			return fmt.Errorf("failed to count answered questions: %w", err)
		}
		attempt.QuestionsAnswered = answered

		// The all-answered gate only applies to deliberate submits.
		if !timedOut && answered < attempt.TotalQuestions {
			return NewBusinessRuleError("attempt_incomplete",
				"all questions must be answered before submitting").
				WithDetail("answered", answered).
				WithDetail("total", attempt.TotalQuestions)
		}

		if timedOut {
			attempt.Status = models.AttemptTimedOut
			reason := models.AttemptEndReasonTimeout
			attempt.EndReason = &reason
		} else {
			attempt.Status = models.AttemptCompleted
			reason := models.AttemptEndReasonSubmitted
			attempt.EndReason = &reason
		}
		attempt.CompletedAt = &now
		if req.TimeSpent != nil {
			attempt.TimeSpent = *req.TimeSpent
		} else if attempt.StartedAt != nil {
			attempt.TimeSpent = int(now.Sub(*attempt.StartedAt).Seconds())
		}

		return txRepo.Attempt().Update(ctx, nil, attempt)
	})
	if err != nil {
		return nil, err
	}

	// Grade inside the request so results are available immediately.
	grading := NewGradingService(s.db, s.repo, s.logger, s.validator)
	results, err := grading.GradeAttempt(ctx, attemptID)
	if err != nil {
		s.logger.Error("Failed to grade attempt", "attempt_id", attemptID, "error", err)
	}

	s.publishAttemptEvent(ctx, attempt, results)

	s.logger.Info("Assessment attempt submitted",
		"attempt_id", attemptID,
		"status", attempt.Status,
		"student_id", studentID)

	updated, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	return s.buildAttemptResponse(ctx, updated, studentID, false)
}

// ===== READS =====

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "attempt", "read", "not owner or insufficient permissions")
	}

	return s.buildAttemptResponse(ctx, attempt, userID, true)
}

func (s *attemptService) GetResults(ctx context.Context, attemptID uint, userID string) (*AttemptResults, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, attemptID, "attempt", "view_results", "not owner or insufficient permissions")
	}

	// Results exist only after the attempt is finalized.
	if attempt.Status == models.AttemptInProgress {
		return nil, ErrAttemptInProgress
	}

	grading := NewGradingService(s.db, s.repo, s.logger, s.validator)
	return grading.BuildResults(ctx, attemptID)
}

func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID, "get_time_remaining")
	if err != nil {
		return 0, err
	}

	if attempt.Status != models.AttemptInProgress {
		return 0, ErrAttemptNotActive
	}

	if attempt.EndsAt == nil {
		return 0, nil // Untimed
	}

	remaining := int(time.Until(*attempt.EndsAt).Seconds())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// ===== LISTS =====

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*AttemptResponse, int64, error) {
	filters.StudentID = &studentID

	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, s.db, studentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get attempts by student: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i], err = s.buildAttemptResponse(ctx, attempt, studentID, false)
		if err != nil {
			return nil, 0, err
		}
	}
	return responses, total, nil
}

func (s *attemptService) GetByAssessment(ctx context.Context, assessmentID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error) {
	assessmentService := NewAssessmentService(s.repo, s.db, s.logger, s.validator)
	canAccess, err := assessmentService.CanAccess(ctx, assessmentID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !canAccess {
		return nil, 0, NewPermissionError(userID, assessmentID, "assessment", "view_attempts", "not owner or insufficient permissions")
	}

	attempts, total, err := s.repo.Attempt().GetByAssessment(ctx, s.db, assessmentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get attempts by assessment: %w", err)
	}

	responses := make([]*AttemptResponse, len(attempts))
	for i, attempt := range attempts {
		responses[i], err = s.buildAttemptResponse(ctx, attempt, userID, false)
		if err != nil {
			return nil, 0, err
		}
	}
	return responses, total, nil
}

// ===== TIMEOUT HANDLING =====

// HandleTimeout finalizes an expired attempt on the timeout path: the
// all-answered gate does not apply and existing answers are graded as-is.
func (s *attemptService) HandleTimeout(ctx context.Context, attemptID uint) error {
	s.logger.Info("Handling attempt timeout", "attempt_id", attemptID)

	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status != models.AttemptInProgress {
		return nil // Already finalized
	}

	now := time.Now()
	attempt.Status = models.AttemptTimedOut
	reason := models.AttemptEndReasonTimeout
	attempt.EndReason = &reason
	attempt.CompletedAt = &now
	if attempt.StartedAt != nil {
		attempt.TimeSpent = int(now.Sub(*attempt.StartedAt).Seconds())
	}

	answered, err := s.repo.Answer().CountAnswered(ctx, nil, attemptID)
	if err == nil {
		attempt.QuestionsAnswered = answered
	}

	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return fmt.Errorf("failed to update attempt status: %w", err)
	}

	grading := NewGradingService(s.db, s.repo, s.logger, s.validator)
	results, err := grading.GradeAttempt(ctx, attemptID)
	if err != nil {
		s.logger.Error("Failed to grade timed out attempt", "attempt_id", attemptID, "error", err)
	}

	s.publishAttemptEvent(ctx, attempt, results)

	s.logger.Info("Attempt timeout handled", "attempt_id", attemptID)
	return nil
}

// SweepExpired closes attempts whose deadline passed while nobody was
// looking. Returns how many were closed.
func (s *attemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.Attempt().GetExpiredInProgress(ctx, s.db, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	closed := 0
	for _, attempt := range expired {
		if err := s.HandleTimeout(ctx, attempt.ID); err != nil {
			s.logger.Error("Failed to sweep expired attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// ===== STATISTICS =====

func (s *attemptService) GetStats(ctx context.Context, assessmentID uint, userID string) (*repositories.AttemptStats, error) {
	assessmentService := NewAssessmentService(s.repo, s.db, s.logger, s.validator)
	canAccess, err := assessmentService.CanAccess(ctx, assessmentID, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, assessmentID, "assessment", "view_stats", "not owner or insufficient permissions")
	}

	stats, err := s.repo.Attempt().GetStats(ctx, s.db, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return stats, nil
}

// publishAttemptEvent emits the finalization event; failures are logged,
// never surfaced to the student.
func (s *attemptService) publishAttemptEvent(ctx context.Context, attempt *models.AssessmentAttempt, results *AttemptResults) {
	if s.publisher == nil {
		return
	}

	eventType := events.EventAttemptSubmitted
	if attempt.Status == models.AttemptTimedOut {
		eventType = events.EventAttemptTimedOut
	}

	payload := events.AttemptSubmittedEvent{
		AttemptID:    attempt.ID,
		AssessmentID: attempt.AssessmentID,
		StudentID:    attempt.StudentID,
		TimeSpent:    attempt.TimeSpent,
	}
	if attempt.EndReason != nil {
		payload.EndReason = *attempt.EndReason
	}
	if results != nil {
		payload.Score = &results.Score
		payload.Percentage = &results.Percentage
		payload.Passed = &results.Passed
	}

	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Error("Failed to publish attempt event",
			"attempt_id", attempt.ID,
			"event_type", eventType,
			"error", err)
	}
}
