package services

import (
	"errors"
	"fmt"
)

// ===== SENTINEL ERRORS =====

var (
	// Assessment errors
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrAssessmentNotActive  = errors.New("assessment is not active")
	ErrAssessmentHasExpired = errors.New("assessment due date has passed")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptCannotStart      = errors.New("attempt cannot be started")
	ErrAttemptAlreadySubmitted = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAttemptInProgress       = errors.New("attempt is still in progress")
	ErrMaxAttemptsReached      = errors.New("maximum attempts reached")
	ErrAnswerNotFound          = errors.New("answer not found")
	ErrQuestionNotInAttempt    = errors.New("question does not belong to this attempt")

	// Grading errors
	ErrGradingNotAllowed   = errors.New("question type requires manual grading")
	ErrNothingToGrade      = errors.New("no answers pending manual grading")
	ErrAttemptNotCompleted = errors.New("attempt is not completed")

	// Lesson / progress errors
	ErrCourseNotFound               = errors.New("course not found")
	ErrLessonNotFound               = errors.New("lesson not found")
	ErrProgressNotFound             = errors.New("progress not found")
	ErrProgressAlreadyCompleted     = errors.New("lesson is already completed")
	ErrCompletionRequirementsNotMet = errors.New("lesson completion requirements not met")
)

// ===== STRUCTURED ERRORS =====

// PermissionError carries who tried to do what to which resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError signals a domain rule violation that maps to 422.
type BusinessRuleError struct {
	Rule    string
	Message string
	Details map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

func (e *BusinessRuleError) WithDetail(key string, value interface{}) *BusinessRuleError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ValidationError mirrors the validator package shape for service-level checks.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}
