package models

import (
	"time"
)

type LessonProgress struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	LessonID  uint   `json:"lesson_id" gorm:"not null;index;uniqueIndex:idx_progress_lesson_student"`
	StudentID string `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_progress_lesson_student"`
	CourseID  uint   `json:"course_id" gorm:"not null;index"`

	IsCompleted bool       `json:"is_completed" gorm:"default:false;index"`
	CompletedAt *time.Time `json:"completed_at"`

	// Video telemetry. LastWatchedPosition is the resume point in seconds,
	// VideoPercentageWatched is monotonic, WatchDuration is the
	// client-reported watch time and takes the latest write.
	LastWatchedPosition    int `json:"last_watched_position"`
	VideoPercentageWatched int `json:"video_percentage_watched"`
	WatchDuration          int `json:"watch_duration"` // seconds

	OpenCount int `json:"open_count" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Lesson  Lesson `json:"-" gorm:"foreignKey:LessonID"`
	Student User   `json:"-" gorm:"foreignKey:StudentID"`
}

func (LessonProgress) TableName() string {
	return "lesson_progresses"
}

// CourseProgress is the computed rollup for one student in one course.
type CourseProgress struct {
	CourseID         uint             `json:"course_id"`
	StudentID        string           `json:"student_id"`
	TotalLessons     int              `json:"total_lessons"`
	CompletedLessons int              `json:"completed_lessons"`
	OverallProgress  float64          `json:"overall_progress"` // percent
	Lessons          []LessonProgress `json:"lessons,omitempty"`
}

// ComputeOverallProgress returns completed/total as a percentage, 0 for an
// empty course.
func ComputeOverallProgress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
