package validator

import (
	"time"

	"github.com/futuretek/lms-service/internal/models"
)

// AssessmentCreateRequest is the payload for creating assessments.
type AssessmentCreateRequest struct {
	CourseID     *uint                      `json:"course_id"`
	Title        string                     `json:"title" validate:"required,min=1,max=200"`
	Description  *string                    `json:"description" validate:"omitempty,max=1000"`
	TimeLimit    *int                       `json:"time_limit" validate:"omitempty,time_limit"`
	PassingScore int                        `json:"passing_score" validate:"passing_score"`
	MaxAttempts  int                        `json:"max_attempts" validate:"max_attempts"`
	DueDate      *time.Time                 `json:"due_date" validate:"omitempty,future_date"`
	Settings     *AssessmentSettingsRequest `json:"settings"`
	Questions    []QuestionCreateRequest    `json:"questions" validate:"omitempty,dive"`
}

// AssessmentUpdateRequest is the payload for updating assessments.
// All fields are optional; nil means leave unchanged.
type AssessmentUpdateRequest struct {
	Title        *string                    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string                    `json:"description" validate:"omitempty,max=1000"`
	TimeLimit    *int                       `json:"time_limit" validate:"omitempty,time_limit"`
	PassingScore *int                       `json:"passing_score" validate:"omitempty,passing_score"`
	MaxAttempts  *int                       `json:"max_attempts" validate:"omitempty,max_attempts"`
	DueDate      *time.Time                 `json:"due_date" validate:"omitempty,future_date"`
	Settings     *AssessmentSettingsRequest `json:"settings"`
}

type AssessmentSettingsRequest struct {
	ShuffleQuestions   *bool `json:"shuffle_questions"`
	ShowResults        *bool `json:"show_results"`
	ShowCorrectAnswers *bool `json:"show_correct_answers"`
	AllowRetake        *bool `json:"allow_retake"`
}

// QuestionCreateRequest is the payload for creating questions.
type QuestionCreateRequest struct {
	Type           models.QuestionType    `json:"type" validate:"required,question_type"`
	Text           string                 `json:"text" validate:"required,min=1,max=2000"`
	Content        interface{}            `json:"content" validate:"required"`
	Points         int                    `json:"points" validate:"required,min=1,max=100"`
	NegativePoints int                    `json:"negative_points" validate:"min=0,max=100"`
	Difficulty     models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	DisplayOrder   int                    `json:"display_order" validate:"min=0"`
	Explanation    *string                `json:"explanation" validate:"omitempty,max=1000"`
}

// QuestionUpdateRequest is the payload for updating questions.
type QuestionUpdateRequest struct {
	Text           *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	Content        interface{}             `json:"content"`
	Points         *int                    `json:"points" validate:"omitempty,min=1,max=100"`
	NegativePoints *int                    `json:"negative_points" validate:"omitempty,min=0,max=100"`
	Difficulty     *models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	DisplayOrder   *int                    `json:"display_order" validate:"omitempty,min=0"`
	Explanation    *string                 `json:"explanation" validate:"omitempty,max=1000"`
}

// LessonCreateRequest is the payload for creating lessons.
type LessonCreateRequest struct {
	CourseID     uint                    `json:"course_id" validate:"required"`
	Title        string                  `json:"title" validate:"required,min=1,max=200"`
	ContentType  models.ContentType      `json:"content_type" validate:"required,content_type"`
	DisplayOrder int                     `json:"display_order" validate:"min=0"`
	VideoURL     *string                 `json:"video_url" validate:"omitempty,url,max=1000"`
	// VideoDuration is in seconds
	VideoDuration    int                     `json:"video_duration" validate:"min=0"`
	ArticleBody      *string                 `json:"article_body"`
	QuizAssessmentID *uint                   `json:"quiz_assessment_id"`
	CompletionRules  *CompletionRulesRequest `json:"completion_rules"`
}

// LessonUpdateRequest is the payload for updating lessons.
type LessonUpdateRequest struct {
	Title            *string                 `json:"title" validate:"omitempty,min=1,max=200"`
	DisplayOrder     *int                    `json:"display_order" validate:"omitempty,min=0"`
	VideoURL         *string                 `json:"video_url" validate:"omitempty,url,max=1000"`
	VideoDuration    *int                    `json:"video_duration" validate:"omitempty,min=0"`
	ArticleBody      *string                 `json:"article_body"`
	QuizAssessmentID *uint                   `json:"quiz_assessment_id"`
	CompletionRules  *CompletionRulesRequest `json:"completion_rules"`
}

type CompletionRulesRequest struct {
	RequireVideoWatched     bool `json:"require_video_watched"`
	MinVideoWatchPercentage *int `json:"min_video_watch_percentage" validate:"omitempty,watch_percentage"`
	RequireResourcesViewed  bool `json:"require_resources_viewed"`
	RequireQuizPassed       bool `json:"require_quiz_passed"`
}
