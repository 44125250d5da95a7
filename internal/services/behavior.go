package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

var eventTypeRe = regexp.MustCompile(`^[a-z0-9_\.]{3,64}$`)

// BehaviorEventInput is the boundary payload for one tracked interaction.
type BehaviorEventInput struct {
	UserID          uuid.UUID      `json:"user_id"`
	SessionID       string         `json:"session_id"`
	EventType       string         `json:"event_type"`
	CourseID        string         `json:"course_id,omitempty"`
	ChapterID       string         `json:"chapter_id,omitempty"`
	AssessmentID    string         `json:"assessment_id,omitempty"`
	PageURL         string         `json:"page_url,omitempty"`
	OccurredAt      *time.Time     `json:"occurred_at,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

type BehaviorService interface {
	RecordEvent(ctx context.Context, input BehaviorEventInput) (*types.BehaviorEvent, error)
	ListEvents(ctx context.Context, filter repos.BehaviorEventFilter) ([]*types.BehaviorEvent, error)
	DeleteUserData(ctx context.Context, userID uuid.UUID) (int64, error)
	AnonymizeUserData(ctx context.Context, userID uuid.UUID) (int64, error)
}

type behaviorService struct {
	db        *gorm.DB
	log       *logger.Logger
	eventRepo repos.BehaviorEventRepo
}

func NewBehaviorService(db *gorm.DB, baseLog *logger.Logger, eventRepo repos.BehaviorEventRepo) BehaviorService {
	return &behaviorService{
		db:        db,
		log:       baseLog.With("service", "BehaviorService"),
		eventRepo: eventRepo,
	}
}

// RecordEvent validates and appends one event, deriving its engagement
// score at write time. Unknown metadata keys pass through opaquely.
func (s *behaviorService) RecordEvent(ctx context.Context, input BehaviorEventInput) (*types.BehaviorEvent, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidEvent)
	}
	eventType := strings.TrimSpace(strings.ToLower(input.EventType))
	if !eventTypeRe.MatchString(eventType) {
		return nil, fmt.Errorf("%w: bad event_type %q", ErrInvalidEvent, input.EventType)
	}

	occurred := time.Now().UTC()
	if input.OccurredAt != nil && !input.OccurredAt.IsZero() {
		occurred = input.OccurredAt.UTC()
	}

	metadata := datatypes.JSON([]byte("{}"))
	if len(input.Metadata) > 0 {
		b, err := json.Marshal(input.Metadata)
		if err != nil {
			s.log.Warn("event metadata marshal failed, storing empty", "error", err)
		} else {
			metadata = datatypes.JSON(b)
		}
	}

	event := &types.BehaviorEvent{
		ID:              uuid.New(),
		UserID:          input.UserID,
		SessionID:       strings.TrimSpace(input.SessionID),
		EventType:       eventType,
		CourseID:        parseOptionalUUID(input.CourseID),
		ChapterID:       parseOptionalUUID(input.ChapterID),
		AssessmentID:    parseOptionalUUID(input.AssessmentID),
		PageURL:         strings.TrimSpace(input.PageURL),
		Timestamp:       occurred,
		DurationSeconds: input.DurationSeconds,
		Metadata:        metadata,
		EngagementScore: ScoreEvent(eventType, input.DurationSeconds),
	}
	created, err := s.eventRepo.Create(ctx, nil, []*types.BehaviorEvent{event})
	if err != nil {
		s.log.Warn("event ingest failed", "error", err)
		return nil, err
	}
	return created[0], nil
}

func (s *behaviorService) ListEvents(ctx context.Context, filter repos.BehaviorEventFilter) ([]*types.BehaviorEvent, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.eventRepo.List(ctx, nil, filter)
}

// DeleteUserData hard-removes every event for the user. Idempotent: a
// second call affects zero rows.
func (s *behaviorService) DeleteUserData(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.eventRepo.DeleteByUser(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info("behavior data deleted", "user_id", userID, "rows", n)
	return n, nil
}

// AnonymizeUserData scrubs identifying fields while retaining the rows'
// aggregate statistical value. Idempotent for the same reason.
func (s *behaviorService) AnonymizeUserData(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.eventRepo.AnonymizeByUser(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	s.log.Info("behavior data anonymized", "user_id", userID, "rows", n)
	return n, nil
}

func parseOptionalUUID(v string) *uuid.UUID {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil
	}
	return &id
}
