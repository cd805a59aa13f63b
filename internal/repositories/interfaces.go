package repositories

import (
	"time"

	"github.com/futuretek/lms-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	Status    *models.AssessmentStatus `json:"status"`
	CourseID  *uint                    `json:"course_id"`
	CreatedBy *string                  `json:"created_by"`
	DateFrom  *time.Time               `json:"date_from"`
	DateTo    *time.Time               `json:"date_to"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
	SortBy    string                   `json:"sort_by"`    // "created_at", "title", "due_date"
	SortOrder string                   `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type LessonFilters struct {
	ContentType *models.ContentType `json:"content_type"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

type ProgressFilters struct {
	IsCompleted *bool `json:"is_completed"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

type AnswerGrade struct {
	ID       uint    `json:"answer_id"`
	Score    float64 `json:"score"`
	Feedback *string `json:"feedback"`
	GraderID string  `json:"grader_id"`
}

type AttemptValidation struct {
	CanStart bool   `json:"can_start"`
	Reason   string `json:"reason,omitempty"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AssessmentStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	AverageScore      float64 `json:"average_score"`
	PassRate          float64 `json:"pass_rate"`
	AverageTimeSpent  int     `json:"average_time_spent"`
	QuestionCount     int     `json:"question_count"`
	TotalPoints       int     `json:"total_points"`
}

type AttemptStats struct {
	TotalAttempts    int                          `json:"total_attempts"`
	StatusBreakdown  map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore     float64                      `json:"average_score"`
	AverageTimeSpent int                          `json:"average_time_spent"`
	PassRate         float64                      `json:"pass_rate"`
}

type CourseProgressStats struct {
	TotalLessons     int `json:"total_lessons"`
	CompletedLessons int `json:"completed_lessons"`
}
