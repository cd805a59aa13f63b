package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	eventSource  = "lms-service"
	eventVersion = "1.0"
)

// Event types published by the service
const (
	EventAttemptSubmitted = "attempt.submitted"
	EventAttemptTimedOut  = "attempt.timed_out"
	EventLessonCompleted  = "lesson.completed"
	EventProgressUpdated  = "progress.updated"
)

// Event is the envelope every published message carries.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent wraps payload data in a fully populated envelope.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// AttemptSubmittedEvent is emitted when an attempt is finalized,
// whether by explicit submit or by timeout.
type AttemptSubmittedEvent struct {
	AttemptID    uint     `json:"attempt_id"`
	AssessmentID uint     `json:"assessment_id"`
	StudentID    string   `json:"student_id"`
	Score        *float64 `json:"score,omitempty"`
	Percentage   *float64 `json:"percentage,omitempty"`
	Passed       *bool    `json:"passed,omitempty"`
	EndReason    string   `json:"end_reason"`
	TimeSpent    int      `json:"time_spent"`
}

// LessonCompletedEvent is emitted when a student completes a lesson.
type LessonCompletedEvent struct {
	LessonID  uint   `json:"lesson_id"`
	CourseID  uint   `json:"course_id"`
	StudentID string `json:"student_id"`
}

// ProgressUpdatedEvent is emitted on lesson progress writes.
type ProgressUpdatedEvent struct {
	LessonID               uint   `json:"lesson_id"`
	CourseID               uint   `json:"course_id"`
	StudentID              string `json:"student_id"`
	LastWatchedPosition    int    `json:"last_watched_position"`
	VideoPercentageWatched int    `json:"video_percentage_watched"`
}
