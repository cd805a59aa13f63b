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

type gradingService struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewGradingService(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) GradingService {
	return &gradingService{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== AUTO GRADING =====

// GradeAttempt scores every auto-gradable answer and rolls the attempt total
// up. Essay answers with content are left pending for a teacher; the attempt
// stays ungraded until they are scored.
func (s *gradingService) GradeAttempt(ctx context.Context, attemptID uint) (*AttemptResults, error) {
	s.logger.Info("Grading attempt", "attempt_id", attemptID)

	var results *AttemptResults
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByID(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.Status == models.AttemptInProgress {
			return ErrAttemptNotCompleted
		}

		assessment, err := txRepo.Assessment().GetByIDWithDetails(ctx, nil, attempt.AssessmentID)
		if err != nil {
			return fmt.Errorf("failed to get assessment: %w", err)
		}

		answers, err := txRepo.Answer().GetByAttempt(ctx, nil, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get attempt answers: %w", err)
		}

		questionsByID := make(map[uint]*models.Question, len(assessment.Questions))
		for i := range assessment.Questions {
			questionsByID[assessment.Questions[i].ID] = &assessment.Questions[i]
		}

		totalScore := 0.0
		maxScore := 0
		pendingManual := false
		now := time.Now()

		var toUpdate []*models.StudentAnswer
		for _, answer := range answers {
			question, ok := questionsByID[answer.QuestionID]
			if !ok {
				s.logger.Warn("Answer references unknown question",
					"attempt_id", attemptID,
					"question_id", answer.QuestionID)
				continue
			}

			maxScore += question.Points

			// Essays with content wait for a teacher.
			if question.Type == models.Essay && answer.HasContent() {
				if !answer.IsGraded {
					pendingManual = true
				} else {
					totalScore += answer.Score
				}
				continue
			}

			score, isCorrect := s.scoreAnswer(question, answer)
			answer.Score = score
			answer.MaxScore = question.Points
			answer.IsCorrect = &isCorrect
			answer.IsGraded = true
			answer.GradedAt = &now
			// GradedBy stays nil for auto-graded answers
			toUpdate = append(toUpdate, answer)

			totalScore += score
		}

		if len(toUpdate) > 0 {
			if err := txRepo.Answer().UpdateBatch(ctx, nil, toUpdate); err != nil {
				return fmt.Errorf("failed to update graded answers: %w", err)
			}
		}

		// Negative marking can push individual answers below zero, but the
		// attempt total never goes negative.
		if totalScore < 0 {
			totalScore = 0
		}

		percentage := 0.0
		if maxScore > 0 {
			percentage = totalScore / float64(maxScore) * 100
		}

		attempt.Score = totalScore
		attempt.MaxScore = maxScore
		attempt.Percentage = percentage
		attempt.Passed = !pendingManual && percentage >= float64(assessment.PassingScore)
		attempt.IsGraded = !pendingManual
		attempt.PendingManualGrading = pendingManual

		if err := txRepo.Attempt().Update(ctx, nil, attempt); err != nil {
			return fmt.Errorf("failed to update attempt grade: %w", err)
		}

		results = s.assembleResults(attempt, assessment, answers, questionsByID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt graded",
		"attempt_id", attemptID,
		"score", results.Score,
		"percentage", results.Percentage,
		"pending_manual", results.PendingManualGrading)

	return results, nil
}

// ===== MANUAL GRADING =====

// GradeManually records teacher scores for essay answers and finalizes the
// attempt once nothing is left pending.
func (s *gradingService) GradeManually(ctx context.Context, attemptID uint, req *ManualGradeRequest, graderID string) (*AttemptResults, error) {
	s.logger.Info("Manually grading attempt",
		"attempt_id", attemptID,
		"grader_id", graderID,
		"grades", len(req.Grades))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status == models.AttemptInProgress {
		return nil, ErrAttemptNotCompleted
	}

	if err := s.checkGradingPermission(ctx, attempt, graderID); err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		now := time.Now()
		for _, grade := range req.Grades {
			answer, err := txRepo.Answer().GetByAttemptAndQuestion(ctx, nil, attemptID, grade.QuestionID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrQuestionNotInAttempt
				}
				return fmt.Errorf("failed to get answer for question %d: %w", grade.QuestionID, err)
			}

			question, err := txRepo.Question().GetByID(ctx, nil, grade.QuestionID)
			if err != nil {
				return fmt.Errorf("failed to get question %d: %w", grade.QuestionID, err)
			}

			if question.IsAutoGradable() {
				return ErrGradingNotAllowed
			}

			if grade.Score < 0 || grade.Score > float64(question.Points) {
				return NewValidationError("score",
					fmt.Sprintf("score for question %d must be between 0 and %d", grade.QuestionID, question.Points),
					grade.Score)
			}

			isCorrect := grade.Score == float64(question.Points)
			answer.Score = grade.Score
			answer.MaxScore = question.Points
			answer.IsCorrect = &isCorrect
			answer.IsGraded = true
			answer.GradedBy = &graderID
			answer.GradedAt = &now
			answer.Feedback = grade.Feedback

			if err := txRepo.Answer().Update(ctx, nil, answer); err != nil {
				return fmt.Errorf("failed to update answer grade: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Re-run the rollup; it finalizes Passed once nothing is pending.
	return s.GradeAttempt(ctx, attemptID)
}

// ===== RESULTS =====

func (s *gradingService) BuildResults(ctx context.Context, attemptID uint) (*AttemptResults, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByIDWithDetails(ctx, s.db, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	answers, err := s.repo.Answer().GetByAttempt(ctx, s.db, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt answers: %w", err)
	}

	questionsByID := make(map[uint]*models.Question, len(assessment.Questions))
	for i := range assessment.Questions {
		questionsByID[assessment.Questions[i].ID] = &assessment.Questions[i]
	}

	return s.assembleResults(attempt, assessment, answers, questionsByID), nil
}

func (s *gradingService) assembleResults(attempt *models.AssessmentAttempt, assessment *models.Assessment, answers []*models.StudentAnswer, questionsByID map[uint]*models.Question) *AttemptResults {
	results := &AttemptResults{
		AttemptID:            attempt.ID,
		AssessmentID:         attempt.AssessmentID,
		Status:               attempt.Status,
		Score:                attempt.Score,
		MaxScore:             attempt.MaxScore,
		Percentage:           attempt.Percentage,
		Passed:               attempt.Passed,
		PendingManualGrading: attempt.PendingManualGrading,
		TimeSpent:            attempt.TimeSpent,
		CompletedAt:          attempt.CompletedAt,
		EndReason:            attempt.EndReason,
	}

	for _, answer := range answers {
		question, ok := questionsByID[answer.QuestionID]
		if !ok {
			continue
		}

		var given interface{}
		if answer.HasContent() {
			if err := json.Unmarshal(answer.Answer, &given); err != nil {
				s.logger.Warn("Failed to decode stored answer",
					"answer_id", answer.ID, "error", err)
			}
		}

		results.Questions = append(results.Questions, QuestionResult{
			QuestionID:     question.ID,
			Type:           question.Type,
			Text:           question.Text,
			Answer:         given,
			IsCorrect:      answer.IsCorrect,
			PointsEarned:   answer.Score,
			PointsPossible: question.Points,
			Feedback:       answer.Feedback,
			PendingGrading: question.Type == models.Essay && !answer.IsGraded && answer.HasContent(),
		})
	}

	return results
}

func (s *gradingService) checkGradingPermission(ctx context.Context, attempt *models.AssessmentAttempt, graderID string) error {
	user, err := s.repo.User().GetByID(ctx, graderID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return NewPermissionError(graderID, attempt.ID, "attempt", "grade", "insufficient role permissions")
	}

	if user.Role == models.RoleTeacher {
		assessmentService := NewAssessmentService(s.repo, s.db, s.logger, s.validator)
		canAccess, err := assessmentService.CanAccess(ctx, attempt.AssessmentID, graderID)
		if err != nil {
			return err
		}
		if !canAccess {
			return NewPermissionError(graderID, attempt.AssessmentID, "assessment", "grade", "not owner or insufficient permissions")
		}
	}

	return nil
}
