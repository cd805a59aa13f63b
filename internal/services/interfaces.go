package services

import (
	"context"
	"time"

	"github.com/futuretek/lms-service/internal/models"
	"github.com/futuretek/lms-service/internal/repositories"
	"github.com/futuretek/lms-service/internal/validator"
)

// ===== ASSESSMENT DTOs =====

// Request shapes come from the business validator
type CreateAssessmentRequest = validator.AssessmentCreateRequest
type UpdateAssessmentRequest = validator.AssessmentUpdateRequest
type AssessmentSettingsRequest = validator.AssessmentSettingsRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest

type AssessmentResponse struct {
	*models.Assessment
	CanEdit bool `json:"can_edit"`
	CanTake bool `json:"can_take"`
}

type AssessmentListResponse struct {
	Assessments []*AssessmentResponse `json:"assessments"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// ===== ATTEMPT DTOs =====

type StartAttemptRequest struct {
	AssessmentID uint `json:"assessment_id" validate:"required"`
}

type SaveAnswerRequest struct {
	QuestionID uint        `json:"question_id" validate:"required"`
	Answer     interface{} `json:"answer" validate:"required"`
	TimeSpent  *int        `json:"time_spent"`
}

// SaveAttemptRequest persists answers without finalizing the attempt.
type SaveAttemptRequest struct {
	Answers   []SaveAnswerRequest `json:"answers" validate:"omitempty,dive"`
	TimeSpent *int                `json:"time_spent"`
}

type SubmitAttemptRequest struct {
	Answers   []SaveAnswerRequest `json:"answers" validate:"omitempty,dive"`
	TimeSpent *int                `json:"time_spent"`
	EndReason string              `json:"end_reason" validate:"omitempty,oneof=submitted time_out saved_exit"`
}

type AttemptResponse struct {
	*models.AssessmentAttempt
	CanSubmit      bool                 `json:"can_submit"`
	CanResume      bool                 `json:"can_resume"`
	IsPendingGrade bool                 `json:"is_pending_grade"`
	TimeRemaining  *int                 `json:"time_remaining,omitempty"` // seconds
	Questions      []QuestionForAttempt `json:"questions,omitempty"`
}

type QuestionForAttempt struct {
	*models.Question
	IsFirst bool `json:"is_first"`
	IsLast  bool `json:"is_last"`
}

// ===== RESULTS / GRADING DTOs =====

type QuestionResult struct {
	QuestionID     uint         `json:"question_id"`
	Type           models.QuestionType `json:"type"`
	Text           string       `json:"text"`
	Answer         interface{}  `json:"answer"`
	IsCorrect      *bool        `json:"is_correct"`
	PointsEarned   float64      `json:"points_earned"`
	PointsPossible int          `json:"points_possible"`
	Feedback       *string      `json:"feedback,omitempty"`
	PendingGrading bool         `json:"pending_grading"`
}

type AttemptResults struct {
	AttemptID            uint             `json:"attempt_id"`
	AssessmentID         uint             `json:"assessment_id"`
	Status               models.AttemptStatus `json:"status"`
	Score                float64          `json:"score"`
	MaxScore             int              `json:"max_score"`
	Percentage           float64          `json:"percentage"`
	Passed               bool             `json:"passed"`
	PendingManualGrading bool             `json:"pending_manual_grading"`
	TimeSpent            int              `json:"time_spent"`
	CompletedAt          *time.Time       `json:"completed_at"`
	EndReason            *string          `json:"end_reason"`
	Questions            []QuestionResult `json:"questions"`
}

// ManualGradeRequest records teacher scores for essay answers.
type ManualGradeRequest struct {
	Grades []ManualAnswerGrade `json:"grades" validate:"required,min=1,dive"`
}

type ManualAnswerGrade struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	Score      float64 `json:"score" validate:"min=0"`
	Feedback   *string `json:"feedback" validate:"omitempty,max=2000"`
}

// ===== LESSON / PROGRESS DTOs =====

type CreateLessonRequest = validator.LessonCreateRequest
type UpdateLessonRequest = validator.LessonUpdateRequest
type CompletionRulesRequest = validator.CompletionRulesRequest

type LessonResponse struct {
	*models.Lesson
	VideoSource models.VideoSource     `json:"video_source"`
	Progress    *models.LessonProgress `json:"progress,omitempty"`
}

type UpdateProgressRequest struct {
	LessonID               uint `json:"lesson_id" validate:"required"`
	LastWatchedPosition    int  `json:"last_watched_position" validate:"min=0"`
	VideoPercentageWatched int  `json:"video_percentage_watched" validate:"watch_percentage"`
	// WatchDuration is the client's total watch seconds at the time of the
	// write; each write replaces the stored value.
	WatchDuration int `json:"watch_duration" validate:"min=0"`
}

type ProgressResponse struct {
	*models.LessonProgress
	CanComplete bool `json:"can_complete"`
}

// ===== SERVICE INTERFACES =====

type AssessmentService interface {
	Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	GetByIDWithDetails(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error)

	Publish(ctx context.Context, id uint, userID string) error
	Archive(ctx context.Context, id uint, userID string) error

	// Permission checks
	CanAccess(ctx context.Context, assessmentID uint, userID string) (bool, error)
	CanTake(ctx context.Context, assessmentID uint, studentID string) (bool, error)
}

type AttemptService interface {
	// Core attempt lifecycle
	Start(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	SaveAndExit(ctx context.Context, attemptID uint, req *SaveAttemptRequest, studentID string) (*AttemptResponse, error)
	Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, studentID string) (*AttemptResponse, error)

	// Reads
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	GetResults(ctx context.Context, attemptID uint, userID string) (*AttemptResults, error)
	GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error) // seconds

	// Lists
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*AttemptResponse, int64, error)
	GetByAssessment(ctx context.Context, assessmentID uint, filters repositories.AttemptFilters, userID string) ([]*AttemptResponse, int64, error)

	// Timeout handling
	HandleTimeout(ctx context.Context, attemptID uint) error
	SweepExpired(ctx context.Context, limit int) (int, error)

	// Statistics
	GetStats(ctx context.Context, assessmentID uint, userID string) (*repositories.AttemptStats, error)
}

type GradingService interface {
	// Auto grading runs on submit and timeout
	GradeAttempt(ctx context.Context, attemptID uint) (*AttemptResults, error)

	// Manual grading for essay answers
	GradeManually(ctx context.Context, attemptID uint, req *ManualGradeRequest, graderID string) (*AttemptResults, error)

	// Results assembly
	BuildResults(ctx context.Context, attemptID uint) (*AttemptResults, error)
}

// LessonService covers teacher-side lesson authoring; the student-facing
// reads live on ProgressService.
type LessonService interface {
	Create(ctx context.Context, req *CreateLessonRequest, creatorID string) (*LessonResponse, error)
	Update(ctx context.Context, id uint, req *UpdateLessonRequest, userID string) (*LessonResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	ListByCourse(ctx context.Context, courseID uint, userID string) ([]*LessonResponse, error)
}

type ProgressService interface {
	GetLesson(ctx context.Context, lessonID uint, studentID string) (*LessonResponse, error)
	UpdateProgress(ctx context.Context, req *UpdateProgressRequest, studentID string) (*ProgressResponse, error)
	MarkComplete(ctx context.Context, lessonID uint, studentID string) (*ProgressResponse, error)
	GetCourseProgress(ctx context.Context, courseID uint, studentID string) (*models.CourseProgress, error)

	// Gate check without side effects
	CanComplete(ctx context.Context, lesson *models.Lesson, progress *models.LessonProgress) error
}

type ReportService interface {
	// ExportAttempts writes an XLSX workbook of all attempts on an assessment.
	ExportAttempts(ctx context.Context, assessmentID uint, userID string) ([]byte, string, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Assessment() AssessmentService
	Attempt() AttemptService
	Grading() GradingService
	Lesson() LessonService
	Progress() ProgressService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
