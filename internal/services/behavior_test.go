package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

func newBehavior(t *testing.T) (BehaviorService, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	svc := NewBehaviorService(deps.db, logger.NewNop(), deps.eventRepo)
	return svc, deps
}

func TestRecordEventValidation(t *testing.T) {
	svc, _ := newBehavior(t)

	tests := []struct {
		name  string
		input BehaviorEventInput
	}{
		{"missing user", BehaviorEventInput{EventType: types.EventPageView}},
		{"empty event type", BehaviorEventInput{UserID: uuid.New()}},
		{"illegal characters", BehaviorEventInput{UserID: uuid.New(), EventType: "page view!"}},
		{"too short", BehaviorEventInput{UserID: uuid.New(), EventType: "ab"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordEvent(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestRecordEventDerivesEngagementScore(t *testing.T) {
	svc, _ := newBehavior(t)
	userID := uuid.New()

	event, err := svc.RecordEvent(context.Background(), BehaviorEventInput{
		UserID:          userID,
		SessionID:       " s1 ",
		EventType:       "Course_Complete",
		DurationSeconds: 120,
		Metadata:        map[string]any{types.MetaTopic: "algebra"},
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if event.EventType != types.EventCourseComplete {
		t.Errorf("EventType = %q, want normalized %q", event.EventType, types.EventCourseComplete)
	}
	if event.SessionID != "s1" {
		t.Errorf("SessionID = %q, want trimmed", event.SessionID)
	}
	if event.EngagementScore != 1.0 {
		t.Errorf("EngagementScore = %v, want 1.0 for course completion", event.EngagementScore)
	}
	if event.MetadataString(types.MetaTopic) != "algebra" {
		t.Errorf("metadata topic = %q, want algebra", event.MetadataString(types.MetaTopic))
	}
}

func TestRecordEventUnknownTypeAccepted(t *testing.T) {
	svc, _ := newBehavior(t)

	event, err := svc.RecordEvent(context.Background(), BehaviorEventInput{
		UserID:    uuid.New(),
		EventType: "scroll_depth",
	})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if event.EngagementScore != 0.20 {
		t.Errorf("EngagementScore = %v, want default 0.20 for unknown type", event.EngagementScore)
	}
}

func TestListEventsFiltersAndCapsLimit(t *testing.T) {
	svc, deps := newBehavior(t)
	userID := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()

	seedEvents(t, deps.db, userID, []eventSpec{
		{eventType: types.EventPageView, sessionID: "s", at: now.Add(-time.Hour)},
		{eventType: types.EventChapterStart, sessionID: "s", at: now.Add(-30 * time.Minute)},
	})
	seedEvents(t, deps.db, other, []eventSpec{
		{eventType: types.EventPageView, sessionID: "s", at: now},
	})

	events, err := svc.ListEvents(context.Background(), repos.BehaviorEventFilter{
		UserID:    &userID,
		EventType: types.EventPageView,
		Limit:     9999,
	})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].UserID != userID {
		t.Errorf("leaked another user's event")
	}
}

func TestDeleteUserDataIdempotent(t *testing.T) {
	svc, deps := newBehavior(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedEvents(t, deps.db, userID, []eventSpec{
		{eventType: types.EventPageView, sessionID: "s", at: now},
		{eventType: types.EventPageView, sessionID: "s", at: now.Add(-time.Minute)},
	})

	n, err := svc.DeleteUserData(context.Background(), userID)
	if err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}
	if n != 2 {
		t.Errorf("first delete rows = %d, want 2", n)
	}
	n, err = svc.DeleteUserData(context.Background(), userID)
	if err != nil {
		t.Fatalf("second DeleteUserData: %v", err)
	}
	if n != 0 {
		t.Errorf("second delete rows = %d, want 0", n)
	}
}

func TestAnonymizeUserDataIdempotent(t *testing.T) {
	svc, deps := newBehavior(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedEvents(t, deps.db, userID, []eventSpec{
		{eventType: types.EventPageView, sessionID: "s1", at: now},
		{eventType: types.EventChapterStart, sessionID: "s1", at: now.Add(-time.Minute)},
		{eventType: types.EventChapterComplete, sessionID: "s2", at: now.Add(-2 * time.Minute)},
	})

	n, err := svc.AnonymizeUserData(context.Background(), userID)
	if err != nil {
		t.Fatalf("AnonymizeUserData: %v", err)
	}
	if n != 3 {
		t.Errorf("first anonymize rows = %d, want 3", n)
	}

	n, err = svc.AnonymizeUserData(context.Background(), userID)
	if err != nil {
		t.Fatalf("second AnonymizeUserData: %v", err)
	}
	if n != 0 {
		t.Errorf("second anonymize rows = %d, want 0", n)
	}

	// Rows survive with identity scrubbed: the aggregate statistical value
	// is retained.
	var remaining []types.BehaviorEvent
	if err := deps.db.Find(&remaining).Error; err != nil {
		t.Fatalf("read back events: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("len(remaining) = %d, want 3", len(remaining))
	}
	for _, e := range remaining {
		if e.UserID != uuid.Nil {
			t.Errorf("UserID = %v, want scrubbed", e.UserID)
		}
		if e.SessionID != "" {
			t.Errorf("SessionID = %q, want scrubbed", e.SessionID)
		}
		if !e.IsAnonymized {
			t.Error("IsAnonymized not set")
		}
	}
}
