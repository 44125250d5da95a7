package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Behavior event types tracked by the platform. The set is open: unknown
// types are stored as-is and ignored by analyses that do not recognize them.
const (
	EventPageView           = "page_view"
	EventCourseStart        = "course_start"
	EventCourseComplete     = "course_complete"
	EventChapterStart       = "chapter_start"
	EventChapterComplete    = "chapter_complete"
	EventContentInteraction = "content_interaction"
	EventAssessmentStart    = "assessment_start"
	EventAssessmentComplete = "assessment_complete"
)

// Recognized metadata keys. Unknown keys pass through opaquely.
const (
	MetaContentType = "content_type"
	MetaTopic       = "topic"
	MetaScore       = "score"
	MetaTimeSpent   = "time_spent"
	MetaAttempts    = "attempts"
)

// BehaviorEvent is a single timestamped user interaction. Rows are immutable
// once written except for anonymization, which scrubs user_id and sets
// is_anonymized.
type BehaviorEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	SessionID       string         `gorm:"index" json:"session_id"`
	EventType       string         `gorm:"not null;index" json:"event_type"`
	CourseID        *uuid.UUID     `gorm:"type:uuid;index" json:"course_id,omitempty"`
	ChapterID       *uuid.UUID     `gorm:"type:uuid;index" json:"chapter_id,omitempty"`
	AssessmentID    *uuid.UUID     `gorm:"type:uuid;index" json:"assessment_id,omitempty"`
	PageURL         string         `json:"page_url"`
	Timestamp       time.Time      `gorm:"not null;index" json:"timestamp"`
	DurationSeconds float64        `gorm:"not null;default:0" json:"duration_seconds"`
	Metadata        datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	EngagementScore float64        `gorm:"not null;default:0" json:"engagement_score"`
	IsAnonymized    bool           `gorm:"not null;default:false" json:"is_anonymized"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (BehaviorEvent) TableName() string { return "behavior_event" }

// MetadataMap decodes the metadata column. Malformed JSON yields an empty
// map so a single bad event never aborts a batch computation.
func (e *BehaviorEvent) MetadataMap() map[string]interface{} {
	out := map[string]interface{}{}
	if len(e.Metadata) == 0 {
		return out
	}
	if err := json.Unmarshal(e.Metadata, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// MetadataString returns the string value for key, or "" when absent or not
// a string.
func (e *BehaviorEvent) MetadataString(key string) string {
	v, ok := e.MetadataMap()[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// MetadataFloat returns the numeric value for key, or the fallback when
// absent or not numeric. JSON numbers decode as float64.
func (e *BehaviorEvent) MetadataFloat(key string, fallback float64) float64 {
	v, ok := e.MetadataMap()[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}
