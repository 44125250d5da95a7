package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Course struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"not null" json:"title"`
	Description     string         `json:"description"`
	Topic           string         `gorm:"index" json:"topic"`
	DifficultyLevel float64        `gorm:"not null;default:0.3" json:"difficulty_level"`
	ContentTypes    datatypes.JSON `gorm:"type:jsonb" json:"content_types"`
	EstimatedHours  float64        `gorm:"not null;default:0" json:"estimated_hours"`
	IsPublished     bool           `gorm:"not null;default:false;index" json:"is_published"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

type Chapter struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID         uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course           *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Title            string    `gorm:"not null" json:"title"`
	Topic            string    `gorm:"index" json:"topic"`
	Position         int       `gorm:"not null;default:0" json:"position"`
	EstimatedMinutes float64   `gorm:"not null;default:0" json:"estimated_minutes"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (Chapter) TableName() string { return "chapter" }

type Assessment struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID         *uuid.UUID `gorm:"type:uuid;index" json:"course_id,omitempty"`
	ChapterID        *uuid.UUID `gorm:"type:uuid;index" json:"chapter_id,omitempty"`
	Title            string     `gorm:"not null" json:"title"`
	DifficultyLevel  float64    `gorm:"not null;default:0.3" json:"difficulty_level"`
	TimeLimitSeconds int        `gorm:"not null;default:0" json:"time_limit_seconds"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessment" }
