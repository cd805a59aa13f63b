package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index"`
	Type         QuestionType `json:"type" gorm:"not null;index"`
	Text         string       `json:"text" gorm:"type:text;not null" validate:"required"`

	Points int `json:"points" gorm:"default:10" validate:"min=1,max=100"`
	// NegativePoints is deducted when the answer is wrong; 0 disables it.
	NegativePoints int `json:"negative_points" gorm:"default:0" validate:"min=0,max=100"`

	DisplayOrder int             `json:"display_order" gorm:"default:0"`
	Difficulty   DifficultyLevel `json:"difficulty" gorm:"default:medium;index"`

	// Content stored as JSONB, shape depends on Type. Correct answers live
	// inside Content and are stripped before questions reach a student.
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	Explanation *string   `json:"explanation" gorm:"type:text"`
	CreatedBy   string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Assessment Assessment `json:"-" gorm:"foreignKey:AssessmentID"`
}

func (Question) TableName() string {
	return "questions"
}

// IsAutoGradable reports whether answers to this question can be scored
// without a teacher.
func (q *Question) IsAutoGradable() bool {
	return q.Type != Essay
}

// ===== CONTENT SCHEMAS (stored in Question.Content) =====

// MCOption identity is the ID, never the text. Two options may share text.
type MCOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MultipleChoiceContent struct {
	Options          []MCOption `json:"options"`
	CorrectOptionIDs []string   `json:"correct_option_ids"`
	MultipleCorrect  bool       `json:"multiple_correct"`
	PartialCredit    bool       `json:"partial_credit"`
}

type TrueFalseContent struct {
	CorrectAnswer bool `json:"correct_answer"`
}

type ShortAnswerContent struct {
	AcceptedAnswers []string `json:"accepted_answers"`
	CaseSensitive   bool     `json:"case_sensitive"`
	FuzzyMatching   bool     `json:"fuzzy_matching"`
}

type EssayContent struct {
	MinWords      *int    `json:"min_words,omitempty"`
	MaxWords      *int    `json:"max_words,omitempty"`
	GradingRubric *string `json:"grading_rubric,omitempty"`
}
