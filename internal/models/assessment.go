package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	AssessmentDraft    AssessmentStatus = "draft"
	AssessmentActive   AssessmentStatus = "active"
	AssessmentArchived AssessmentStatus = "archived"
)

type Assessment struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	CourseID    *uint            `json:"course_id" gorm:"index"`
	Title       string           `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string          `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Status      AssessmentStatus `json:"status" gorm:"default:draft;index" validate:"omitempty,oneof=draft active archived"`

	// TimeLimit is in minutes; nil means the attempt is untimed.
	TimeLimit    *int `json:"time_limit" validate:"omitempty,min=1,max=300"`
	PassingScore int  `json:"passing_score" gorm:"not null" validate:"required,min=0,max=100"`
	MaxAttempts  int  `json:"max_attempts" gorm:"default:1" validate:"min=1,max=10"`
	DueDate      *time.Time `json:"due_date"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Settings  AssessmentSettings  `json:"settings" gorm:"foreignKey:AssessmentID"`
	Questions []Question          `json:"questions" gorm:"foreignKey:AssessmentID"`
	Attempts  []AssessmentAttempt `json:"attempts" gorm:"foreignKey:AssessmentID"`
	Creator   User                `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalPoints   int `json:"total_points" gorm:"-"`
	AttemptCount  int `json:"attempt_count" gorm:"-"`
}

type AssessmentSettings struct {
	AssessmentID uint      `json:"assessment_id" gorm:"primaryKey;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`

	ShuffleQuestions   bool `json:"shuffle_questions" gorm:"not null;default:false"`
	ShowResults        bool `json:"show_results" gorm:"not null;default:true"`
	ShowCorrectAnswers bool `json:"show_correct_answers" gorm:"not null;default:false"`
	AllowRetake        bool `json:"allow_retake" gorm:"not null;default:true"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (AssessmentSettings) TableName() string {
	return "assessment_settings"
}

// IsTimed reports whether attempts on this assessment have a deadline.
func (a *Assessment) IsTimed() bool {
	return a.TimeLimit != nil && *a.TimeLimit > 0
}
