package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ContentType string

const (
	ContentVideo   ContentType = "video"
	ContentArticle ContentType = "article"
	ContentQuiz    ContentType = "quiz"
)

type VideoSource string

const (
	VideoSourceNone     VideoSource = "none"
	VideoSourceDirect   VideoSource = "direct"
	VideoSourceExternal VideoSource = "external"
)

// DefaultMinVideoWatchPercentage applies when completion rules require the
// video but set no explicit threshold.
const DefaultMinVideoWatchPercentage = 90

type Lesson struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	CourseID     uint        `json:"course_id" gorm:"not null;index"`
	Title        string      `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	ContentType  ContentType `json:"content_type" gorm:"not null;index" validate:"required,oneof=video article quiz"`
	DisplayOrder int         `json:"display_order" gorm:"default:0"`

	// Video content
	VideoURL      *string `json:"video_url" gorm:"size:1000"`
	VideoDuration int     `json:"video_duration"` // seconds

	// Article content
	ArticleBody *string `json:"article_body" gorm:"type:text"`

	// Quiz content
	QuizAssessmentID *uint `json:"quiz_assessment_id" gorm:"index"`

	CompletionRules datatypes.JSONType[CompletionRules] `json:"completion_rules" gorm:"type:jsonb"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Course         Course      `json:"-" gorm:"foreignKey:CourseID"`
	QuizAssessment *Assessment `json:"quiz_assessment,omitempty" gorm:"foreignKey:QuizAssessmentID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// CompletionRules gates manual lesson completion. Zero value means the
// lesson completes on request.
type CompletionRules struct {
	RequireVideoWatched     bool `json:"require_video_watched"`
	MinVideoWatchPercentage *int `json:"min_video_watch_percentage,omitempty"`
	RequireResourcesViewed  bool `json:"require_resources_viewed"`
	RequireQuizPassed       bool `json:"require_quiz_passed"`
}

// MinWatchPercentage returns the configured threshold or the default.
func (r CompletionRules) MinWatchPercentage() int {
	if r.MinVideoWatchPercentage != nil {
		return *r.MinVideoWatchPercentage
	}
	return DefaultMinVideoWatchPercentage
}

var externalEmbedHosts = []string{"youtube.com", "youtu.be", "vimeo.com"}

// VideoSource classifies the lesson video. External embeds (YouTube,
// Vimeo) expose no reliable playback telemetry, so watch-percentage
// gating cannot apply to them.
func (l *Lesson) VideoSource() VideoSource {
	if l.ContentType != ContentVideo || l.VideoURL == nil || *l.VideoURL == "" {
		return VideoSourceNone
	}
	url := strings.ToLower(*l.VideoURL)
	for _, host := range externalEmbedHosts {
		if strings.Contains(url, host) {
			return VideoSourceExternal
		}
	}
	return VideoSourceDirect
}

// IsExternalEmbed reports whether the lesson video is hosted on an
// external embed provider.
func (l *Lesson) IsExternalEmbed() bool {
	return l.VideoSource() == VideoSourceExternal
}
