package types

import (
	"time"

	"github.com/google/uuid"
)

// EngagementMetrics is a time-windowed aggregate over behavior events. It is
// derived on demand and always reproducible from the event store.
type EngagementMetrics struct {
	UserID                 uuid.UUID `json:"user_id"`
	WindowHours            int       `json:"window_hours"`
	TotalSessions          int       `json:"total_sessions"`
	TotalTimeSpent         float64   `json:"total_time_spent"`
	AverageEngagementScore float64   `json:"average_engagement_score"`
	TotalInteractions      int       `json:"total_interactions"`
	TotalPageViews         int       `json:"total_page_views"`
}

// CourseRecommendation is an output-only ranked candidate. Sub-scores are
// kept so callers can see which signal drove the ranking.
type CourseRecommendation struct {
	CourseID                uuid.UUID `json:"course_id"`
	Title                   string    `json:"title"`
	Description             string    `json:"description"`
	RecommendationScore     float64   `json:"recommendation_score"`
	ContentBasedScore       float64   `json:"content_based_score"`
	CollaborativeScore      float64   `json:"collaborative_score"`
	PopularityScore         float64   `json:"popularity_score"`
	DifficultyMatchScore    float64   `json:"difficulty_match_score"`
	LearningStyleMatchScore float64   `json:"learning_style_match_score"`
	Reason                  string    `json:"reason"`
	RecommendedDifficulty   string    `json:"recommended_difficulty"`
	EstimatedCompletionTime float64   `json:"estimated_completion_time"`
}

// PacingAdjustment is an output-only pacing decision. It is only surfaced
// when its confidence clears the adaptation threshold.
type PacingAdjustment struct {
	UserID           uuid.UUID `json:"user_id"`
	CourseID         uuid.UUID `json:"course_id"`
	CurrentPace      float64   `json:"current_pace"`
	RecommendedPace  string    `json:"recommended_pace"`
	AdjustmentFactor float64   `json:"adjustment_factor"`
	Reason           string    `json:"reason"`
	Confidence       float64   `json:"confidence"`
}

// Recommended pace labels.
const (
	PaceSlower = "slower"
	PaceNormal = "normal"
	PaceFaster = "faster"
)

type SupplementaryMaterial struct {
	MaterialID      uuid.UUID `json:"material_id"`
	Title           string    `json:"title"`
	ContentType     string    `json:"content_type"`
	DifficultyLevel string    `json:"difficulty_level"`
	EstimatedTime   float64   `json:"estimated_time"`
	RelevanceScore  float64   `json:"relevance_score"`
	Reason          string    `json:"reason"`
	Priority        int       `json:"priority"`
	Topic           string    `json:"topic"`
}

// Support levels for assessment modifications.
const (
	SupportLow    = "low"
	SupportMedium = "medium"
	SupportHigh   = "high"
)

type AssessmentModification struct {
	AssessmentID        uuid.UUID              `json:"assessment_id"`
	OriginalDifficulty  float64                `json:"original_difficulty"`
	ModifiedDifficulty  float64                `json:"modified_difficulty"`
	QuestionAdjustments map[string]bool        `json:"question_adjustments"`
	TimeAdjustments     map[string]interface{} `json:"time_adjustments"`
	SupportLevel        string                 `json:"support_level"`
	ModificationReason  string                 `json:"modification_reason"`
}

// AdaptedContent maps a profile onto a concrete rendering of one piece of
// content: a difficulty band plus a format consistent with the learning
// style.
type AdaptedContent struct {
	ContentID       uuid.UUID `json:"content_id"`
	DifficultyBand  string    `json:"difficulty_band"`
	ContentFormat   string    `json:"content_format"`
	LearningStyle   string    `json:"learning_style"`
	DifficultyLevel float64   `json:"difficulty_level"`
}

// HealthStatus values, ordered by severity.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
	HealthUnknown  = "unknown"
)

type HealthReport struct {
	Service        string                 `json:"service"`
	Status         string                 `json:"status"`
	Message        string                 `json:"message"`
	ResponseTimeMS float64                `json:"response_time_ms"`
	Timestamp      time.Time              `json:"timestamp"`
	Details        map[string]interface{} `json:"details,omitempty"`
}
