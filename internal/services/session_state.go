package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

const (
	sessionKeyPrefix = "adaptive_session:"
	sessionTTL       = 2 * time.Hour

	// Per-answer difficulty step for the in-session walk.
	sessionDifficultyStep = 0.1
)

// AdaptiveSessionService holds per-session question order and adaptation
// state in redis, keyed by session_id. Difficulty walks up on correct
// answers and down on misses, clamped to [0,1].
type AdaptiveSessionService interface {
	StartSession(ctx context.Context, userID, assessmentID uuid.UUID, questionIDs []uuid.UUID, initialDifficulty float64) (*types.AdaptiveSession, error)
	GetSession(ctx context.Context, sessionID string) (*types.AdaptiveSession, error)
	NextQuestion(ctx context.Context, sessionID string) (*uuid.UUID, float64, error)
	RecordAnswer(ctx context.Context, sessionID string, questionID uuid.UUID, correct bool, timeSpentSeconds float64) (*types.AdaptiveSession, error)
	EndSession(ctx context.Context, sessionID string) error
}

type adaptiveSessionService struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewAdaptiveSessionService(baseLog *logger.Logger, rdb *goredis.Client) AdaptiveSessionService {
	return &adaptiveSessionService{
		log: baseLog.With("service", "AdaptiveSessionService"),
		rdb: rdb,
	}
}

func (s *adaptiveSessionService) StartSession(ctx context.Context, userID, assessmentID uuid.UUID, questionIDs []uuid.UUID, initialDifficulty float64) (*types.AdaptiveSession, error) {
	if userID == uuid.Nil || assessmentID == uuid.Nil {
		return nil, fmt.Errorf("user and assessment required")
	}
	if len(questionIDs) == 0 {
		return nil, fmt.Errorf("question order required")
	}
	now := time.Now().UTC()
	session := &types.AdaptiveSession{
		SessionID:         uuid.New().String(),
		UserID:            userID,
		AssessmentID:      assessmentID,
		QuestionOrder:     questionIDs,
		CurrentIndex:      0,
		CurrentDifficulty: types.Clamp01(initialDifficulty),
		Answers:           []types.SessionAnswer{},
		StartedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns (nil, nil) for an expired or unknown session.
func (s *adaptiveSessionService) GetSession(ctx context.Context, sessionID string) (*types.AdaptiveSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session types.AdaptiveSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// NextQuestion returns the next unanswered question id and the difficulty
// to present it at. A nil id means the order is exhausted.
func (s *adaptiveSessionService) NextQuestion(ctx context.Context, sessionID string) (*uuid.UUID, float64, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if session == nil {
		return nil, 0, nil
	}
	if session.CurrentIndex >= len(session.QuestionOrder) {
		return nil, session.CurrentDifficulty, nil
	}
	id := session.QuestionOrder[session.CurrentIndex]
	return &id, session.CurrentDifficulty, nil
}

func (s *adaptiveSessionService) RecordAnswer(ctx context.Context, sessionID string, questionID uuid.UUID, correct bool, timeSpentSeconds float64) (*types.AdaptiveSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	session.Answers = append(session.Answers, types.SessionAnswer{
		QuestionID:       questionID,
		Correct:          correct,
		TimeSpentSeconds: timeSpentSeconds,
		DifficultyAtAsk:  session.CurrentDifficulty,
	})
	if correct {
		session.CurrentDifficulty = types.Clamp01(session.CurrentDifficulty + sessionDifficultyStep)
	} else {
		session.CurrentDifficulty = types.Clamp01(session.CurrentDifficulty - sessionDifficultyStep)
	}
	session.CurrentIndex++
	session.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *adaptiveSessionService) EndSession(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (s *adaptiveSessionService) save(ctx context.Context, session *types.AdaptiveSession) error {
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKeyPrefix+session.SessionID, b, sessionTTL).Err()
}
