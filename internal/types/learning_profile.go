package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Discrete difficulty bands derived from the continuous difficulty level.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// UserLearningProfile is the authoritative, slowly-adapting personalization
// state for one user. Drifting fields move by exponential smoothing
// (new = old*(1-rate) + observed*rate) and are clamped to [0,1] at write
// time, so a noisy session never produces an abrupt jump or an out-of-range
// value.
type UserLearningProfile struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                 uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	LearningStyle          string         `gorm:"not null;default:'unknown'" json:"learning_style"`
	AttentionSpan          float64        `gorm:"not null;default:0" json:"attention_span"`
	PreferredDifficulty    string         `gorm:"not null;default:'beginner'" json:"preferred_difficulty"`
	CompletionRate         float64        `gorm:"not null;default:0" json:"completion_rate"`
	AverageSessionDuration float64        `gorm:"not null;default:0" json:"average_session_duration"`
	TotalLearningTime      float64        `gorm:"not null;default:0" json:"total_learning_time"`
	CoursesCompleted       int            `gorm:"not null;default:0" json:"courses_completed"`
	EngagementScore        float64        `gorm:"not null;default:0" json:"engagement_score"`
	ConsistencyScore       float64        `gorm:"not null;default:0" json:"consistency_score"`
	ChallengePreference    float64        `gorm:"not null;default:0.5" json:"challenge_preference"`
	StrongTopics           datatypes.JSON `gorm:"type:jsonb" json:"strong_topics"`
	ChallengingTopics      datatypes.JSON `gorm:"type:jsonb" json:"challenging_topics"`
	CurrentDifficultyLevel float64        `gorm:"not null;default:0.3" json:"current_difficulty_level"`
	AdaptationRate         float64        `gorm:"not null;default:0.3" json:"adaptation_rate"`
	LastUpdated            time.Time      `gorm:"not null" json:"last_updated"`
	CreatedAt              time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null" json:"updated_at"`
}

func (UserLearningProfile) TableName() string { return "user_learning_profile" }

// ClampScores bounds every [0,1] invariant field. Repos call this before
// any insert or update so out-of-range values are never persisted.
func (p *UserLearningProfile) ClampScores() {
	p.CompletionRate = Clamp01(p.CompletionRate)
	p.EngagementScore = Clamp01(p.EngagementScore)
	p.ConsistencyScore = Clamp01(p.ConsistencyScore)
	p.ChallengePreference = Clamp01(p.ChallengePreference)
	p.CurrentDifficultyLevel = Clamp01(p.CurrentDifficultyLevel)
	p.AdaptationRate = Clamp01(p.AdaptationRate)
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DifficultyBand maps a continuous difficulty level to a discrete band.
func DifficultyBand(level float64) string {
	switch {
	case level < 0.33:
		return DifficultyBeginner
	case level < 0.66:
		return DifficultyIntermediate
	default:
		return DifficultyAdvanced
	}
}
