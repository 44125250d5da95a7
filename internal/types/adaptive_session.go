package types

import (
	"time"

	"github.com/google/uuid"
)

// AdaptiveSession is the per-session state behind the next-question flow.
// It lives in redis keyed by session_id (not in postgres): it is hot,
// short-lived, and discarded after the assessment ends.
type AdaptiveSession struct {
	SessionID         string          `json:"session_id"`
	UserID            uuid.UUID       `json:"user_id"`
	AssessmentID      uuid.UUID       `json:"assessment_id"`
	QuestionOrder     []uuid.UUID     `json:"question_order"`
	CurrentIndex      int             `json:"current_index"`
	CurrentDifficulty float64         `json:"current_difficulty"`
	Answers           []SessionAnswer `json:"answers"`
	StartedAt         time.Time       `json:"started_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SessionAnswer records one answered question and the difficulty the
// session was at when it was asked.
type SessionAnswer struct {
	QuestionID       uuid.UUID `json:"question_id"`
	Correct          bool      `json:"correct"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
	DifficultyAtAsk  float64   `json:"difficulty_at_ask"`
}
