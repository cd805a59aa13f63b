package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

const (
	AttemptEndReasonSubmitted = "submitted"
	AttemptEndReasonTimeout   = "time_out"
	AttemptEndReasonSavedExit = "saved_exit"
)

type AssessmentAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	AssessmentID  uint          `json:"assessment_id" gorm:"not null;index;uniqueIndex:idx_attempt_student_number"`
	StudentID     string        `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_attempt_student_number"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempt_student_number"`
	Status        AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing. EndsAt is fixed at start from the assessment time limit and
	// is nil for untimed assessments.
	StartedAt   *time.Time `json:"started_at"`
	EndsAt      *time.Time `json:"ends_at"`
	CompletedAt *time.Time `json:"completed_at"`
	TimeSpent   int        `json:"time_spent"` // seconds

	// Scoring
	Score      float64 `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
	IsGraded   bool    `json:"is_graded"`
	// PendingManualGrading is set while essay answers await a teacher.
	PendingManualGrading bool `json:"pending_manual_grading"`

	// Progress tracking
	QuestionsAnswered int `json:"questions_answered"`
	TotalQuestions    int `json:"total_questions"`

	// Metadata
	IPAddress   *string        `json:"ip_address" gorm:"size:45"`
	UserAgent   *string        `json:"user_agent" gorm:"type:text"`
	SessionData datatypes.JSON `json:"session_data" gorm:"type:jsonb"`
	EndReason   *string        `json:"end_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assessment Assessment      `json:"assessment" gorm:"foreignKey:AssessmentID"`
	Student    User            `json:"student" gorm:"foreignKey:StudentID"`
	Answers    []StudentAnswer `json:"answers" gorm:"foreignKey:AttemptID"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

// IsExpired reports whether the attempt deadline has passed.
func (a *AssessmentAttempt) IsExpired(now time.Time) bool {
	return a.EndsAt != nil && now.After(*a.EndsAt)
}

// IsOpen reports whether the attempt still accepts answers.
func (a *AssessmentAttempt) IsOpen() bool {
	return a.Status == AttemptInProgress
}

type StudentAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_answer_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_answer_attempt_question"`

	// Answer content, shape depends on question type: option IDs for
	// multiple choice, bool for true/false, text otherwise.
	Answer datatypes.JSON `json:"answer" gorm:"type:jsonb"`

	// Grading
	Score     float64    `json:"score"`
	MaxScore  int        `json:"max_score"`
	IsCorrect *bool      `json:"is_correct"` // nil until graded, stays nil for ungraded essays
	IsGraded  bool       `json:"is_graded"`
	GradedBy  *string    `json:"graded_by" gorm:"size:255"`
	GradedAt  *time.Time `json:"graded_at"`
	Feedback  *string    `json:"feedback" gorm:"type:text"`

	TimeSpent      int        `json:"time_spent"` // seconds
	LastModifiedAt *time.Time `json:"last_modified_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  AssessmentAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question          `json:"question" gorm:"foreignKey:QuestionID"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}

// HasContent reports whether the answer holds anything beyond the empty
// placeholder created at attempt start.
func (sa *StudentAnswer) HasContent() bool {
	raw := string(sa.Answer)
	return raw != "" && raw != "null" && raw != `""` && raw != "[]" && raw != "{}"
}
