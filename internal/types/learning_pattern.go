package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Learning styles inferred from tagged content interactions.
const (
	StyleVisual      = "visual"
	StyleAuditory    = "auditory"
	StyleReading     = "reading"
	StyleKinesthetic = "kinesthetic"
	StyleUnknown     = "unknown"
)

// LearningPattern is the derived statistical summary of one user's
// engagement style. One evolving row per user, overwritten on each
// recalculation. It exists only once the user has enough behavior events
// to give the analyses a statistical basis.
type LearningPattern struct {
	ID                        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	PatternType               string         `gorm:"not null" json:"pattern_type"`
	ConfidenceScore           float64        `gorm:"not null;default:0" json:"confidence_score"`
	PreferredContentTypes     datatypes.JSON `gorm:"type:jsonb" json:"preferred_content_types"`
	OptimalSessionDuration    float64        `gorm:"not null;default:0" json:"optimal_session_duration"`
	DifficultyProgressionRate *float64       `json:"difficulty_progression_rate,omitempty"`
	PreferredLearningTimes    datatypes.JSON `gorm:"type:jsonb" json:"preferred_learning_times"`
	AverageAttentionSpan      float64        `gorm:"not null;default:0" json:"average_attention_span"`
	StrongTopics              datatypes.JSON `gorm:"type:jsonb" json:"strong_topics"`
	ChallengingTopics         datatypes.JSON `gorm:"type:jsonb" json:"challenging_topics"`
	DataPointsCount           int            `gorm:"not null;default:0" json:"data_points_count"`
	LastCalculated            time.Time      `gorm:"not null" json:"last_calculated"`
	CreatedAt                 time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt                 time.Time      `gorm:"not null" json:"updated_at"`
}

func (LearningPattern) TableName() string { return "learning_pattern" }
