package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
)

// ===== ELIGIBILITY =====

func (s *attemptService) checkStartEligibility(ctx context.Context, assessment *models.Assessment, studentID string) error {
	if assessment.Status != models.AssessmentActive {
		return ErrAssessmentNotActive
	}

	if assessment.DueDate != nil && time.Now().After(*assessment.DueDate) {
		return ErrAssessmentHasExpired
	}

	count, err := s.repo.Attempt().CountByAssessmentAndStudent(ctx, s.db, assessment.ID, studentID)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if assessment.MaxAttempts > 0 && count >= assessment.MaxAttempts {
		return ErrMaxAttemptsReached
	}

	return nil
}

// ===== OWNERSHIP / ACCESS =====

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, studentID, action string) (*models.AssessmentAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", action, "not owned by student")
	}
	return attempt, nil
}

func (s *attemptService) canAccessAttempt(ctx context.Context, attempt *models.AssessmentAttempt, userID string) (bool, error) {
	if attempt.StudentID == userID {
		return true, nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleTeacher:
		assessmentService := NewAssessmentService(s.repo, s.db, s.logger, s.validator)
		return assessmentService.CanAccess(ctx, attempt.AssessmentID, userID)
	default:
		return false, nil
	}
}

// ===== ANSWER MANAGEMENT =====

// initializeAnswers creates an empty answer row per question so the gate can
// count answered questions against a fixed total.
func (s *attemptService) initializeAnswers(ctx context.Context, repo repositories.Repository, attempt *models.AssessmentAttempt, assessment *models.Assessment) error {
	if len(assessment.Questions) == 0 {
		return nil
	}

	answers := make([]*models.StudentAnswer, len(assessment.Questions))
	for i, q := range assessment.Questions {
		answers[i] = &models.StudentAnswer{
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			MaxScore:   q.Points,
		}
	}

	if err := repo.Answer().CreateBatch(ctx, nil, answers); err != nil {
		return fmt.Errorf("failed to create initial answers: %w", err)
	}
	return nil
}

func (s *attemptService) upsertAnswer(ctx context.Context, repo repositories.Repository, attemptID uint, req SaveAnswerRequest) error {
	answer, err := repo.Answer().GetByAttemptAndQuestion(ctx, nil, attemptID, req.QuestionID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to get existing answer: %w", err)
		}
		answer = &models.StudentAnswer{
			AttemptID:  attemptID,
			QuestionID: req.QuestionID,
		}
	}

	if req.Answer != nil {
		raw, err := json.Marshal(req.Answer)
		if err != nil {
			return fmt.Errorf("failed to marshal answer for question %d: %w", req.QuestionID, err)
		}
		answer.Answer = raw
	}

	now := time.Now()
	answer.LastModifiedAt = &now
	if req.TimeSpent != nil {
		answer.TimeSpent = *req.TimeSpent
	}

	// A grade from a previous save is stale once the answer changes.
	answer.IsGraded = false
	answer.IsCorrect = nil
	answer.Score = 0

	if answer.ID == 0 {
		if err := repo.Answer().Create(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to create answer for question %d: %w", req.QuestionID, err)
		}
	} else {
		if err := repo.Answer().Update(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to update answer for question %d: %w", req.QuestionID, err)
		}
	}
	return nil
}

// ===== RESPONSE BUILDING =====

func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.AssessmentAttempt, userID string, includeQuestions bool) (*AttemptResponse, error) {
	now := time.Now()
	response := &AttemptResponse{
		AssessmentAttempt: attempt,
		IsPendingGrade:    attempt.PendingManualGrading,
	}

	response.CanSubmit = attempt.Status == models.AttemptInProgress &&
		attempt.StudentID == userID &&
		!attempt.IsExpired(now)
	response.CanResume = response.CanSubmit

	if attempt.Status == models.AttemptInProgress && attempt.EndsAt != nil {
		remaining := int(attempt.EndsAt.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		response.TimeRemaining = &remaining
	}

	if includeQuestions && attempt.StudentID == userID {
		questions, err := s.getAttemptQuestions(ctx, attempt)
		if err != nil {
			s.logger.Error("Failed to get attempt questions", "attempt_id", attempt.ID, "error", err)
		} else {
			response.Questions = questions
		}
	}

	return response, nil
}

func (s *attemptService) getAttemptQuestions(ctx context.Context, attempt *models.AssessmentAttempt) ([]QuestionForAttempt, error) {
	questions, err := s.repo.Question().GetByAssessment(ctx, s.db, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment questions: %w", err)
	}

	showCorrect, err := s.shouldShowCorrectAnswers(ctx, attempt)
	if err != nil {
		s.logger.Warn("Failed to resolve answer visibility, hiding",
			"attempt_id", attempt.ID, "error", err)
		showCorrect = false
	}

	out := make([]QuestionForAttempt, len(questions))
	for i, q := range questions {
		item := *q
		if !showCorrect {
			item = *s.stripCorrectAnswers(q)
		}
		out[i] = QuestionForAttempt{
			Question: &item,
			IsFirst:  i == 0,
			IsLast:   i == len(questions)-1,
		}
	}
	return out, nil
}

// shouldShowCorrectAnswers is false during the attempt, and afterwards only
// when the assessment opts in.
func (s *attemptService) shouldShowCorrectAnswers(ctx context.Context, attempt *models.AssessmentAttempt) (bool, error) {
	if attempt.Status == models.AttemptInProgress {
		return false, nil
	}

	if attempt.Status == models.AttemptCompleted || attempt.Status == models.AttemptTimedOut {
		settings, err := s.repo.AssessmentSettings().GetByAssessmentID(ctx, s.db, attempt.AssessmentID)
		if err != nil {
			return false, nil
		}
		return settings.ShowCorrectAnswers, nil
	}

	return false, nil
}

func (s *attemptService) stripCorrectAnswers(question *models.Question) *models.Question {
	sanitized := *question
	if question.Content == nil {
		return &sanitized
	}

	switch question.Type {
	case models.MultipleChoice:
		sanitized.Content = stripJSONFields(s, question.Content, "correct_option_ids")
	case models.TrueFalse:
		sanitized.Content = stripJSONFields(s, question.Content, "correct_answer")
	case models.ShortAnswer:
		sanitized.Content = stripJSONFields(s, question.Content, "accepted_answers")
	case models.Essay:
		sanitized.Content = stripJSONFields(s, question.Content, "grading_rubric")
	}
	sanitized.Explanation = nil

	return &sanitized
}

func stripJSONFields(s *attemptService, content datatypes.JSON, fields ...string) datatypes.JSON {
	var m map[string]interface{}
	if err := json.Unmarshal(content, &m); err != nil {
		s.logger.Error("Failed to unmarshal question content for sanitization", "error", err)
		return content
	}

	for _, f := range fields {
		delete(m, f)
	}

	out, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("Failed to marshal sanitized question content", "error", err)
		return content
	}
	return out
}
