package models

import (
	"time"

	"gorm.io/gorm"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

type Course struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string      `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`
	Status      CourseStatus `json:"status" gorm:"default:draft;index"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Lessons []Lesson `json:"lessons" gorm:"foreignKey:CourseID"`
	Creator User     `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	LessonCount int `json:"lesson_count" gorm:"-"`
}

func (Course) TableName() string {
	return "courses"
}
