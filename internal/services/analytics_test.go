package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

func newAnalytics(t *testing.T) (AnalyticsService, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	return NewAnalyticsService(deps.db, logger.NewNop(), deps.eventRepo, deps.patternRepo), deps
}

func TestScoreEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		duration  float64
		want      float64
	}{
		{"page view no duration", types.EventPageView, 0, 0.10},
		{"page view sustained", types.EventPageView, 300, 0.20},
		{"course complete clamps", types.EventCourseComplete, 600, 1.0},
		{"unknown type default weight", "custom_event", 0, 0.20},
		{"duration boost caps at 0.2", types.EventChapterStart, 6000, 0.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreEvent(tt.eventType, tt.duration)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ScoreEvent(%q, %v) = %v, want %v", tt.eventType, tt.duration, got, tt.want)
			}
		})
	}
}

func TestCalculateEngagementMetricsNoData(t *testing.T) {
	svc, _ := newAnalytics(t)
	userID := uuid.New()

	metrics, err := svc.CalculateEngagementMetrics(context.Background(), userID, 24)
	if err != nil {
		t.Fatalf("CalculateEngagementMetrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected zeroed metrics, got nil")
	}
	if metrics.TotalSessions != 0 || metrics.TotalTimeSpent != 0 || metrics.AverageEngagementScore != 0 {
		t.Errorf("expected zeroed metrics, got %+v", metrics)
	}
	if metrics.UserID != userID {
		t.Errorf("UserID = %v, want %v", metrics.UserID, userID)
	}
}

func TestCalculateEngagementMetricsAggregates(t *testing.T) {
	svc, deps := newAnalytics(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedEvents(t, deps.db, userID, []eventSpec{
		{eventType: types.EventPageView, sessionID: "s1", at: now.Add(-time.Hour), duration: 30},
		{eventType: types.EventContentInteraction, sessionID: "s1", at: now.Add(-50 * time.Minute), duration: 120},
		{eventType: types.EventContentInteraction, sessionID: "s2", at: now.Add(-20 * time.Minute), duration: 60},
		{eventType: types.EventChapterComplete, sessionID: "s2", at: now.Add(-10 * time.Minute), duration: 90},
	})

	metrics, err := svc.CalculateEngagementMetrics(context.Background(), userID, 24)
	if err != nil {
		t.Fatalf("CalculateEngagementMetrics: %v", err)
	}
	if metrics.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", metrics.TotalSessions)
	}
	if metrics.TotalPageViews != 1 {
		t.Errorf("TotalPageViews = %d, want 1", metrics.TotalPageViews)
	}
	if metrics.TotalInteractions != 2 {
		t.Errorf("TotalInteractions = %d, want 2", metrics.TotalInteractions)
	}
	if math.Abs(metrics.TotalTimeSpent-300) > 1e-9 {
		t.Errorf("TotalTimeSpent = %v, want 300", metrics.TotalTimeSpent)
	}
	if metrics.AverageEngagementScore <= 0 || metrics.AverageEngagementScore > 1 {
		t.Errorf("AverageEngagementScore = %v, want (0,1]", metrics.AverageEngagementScore)
	}
}

func TestIdentifyLearningPatternsInsufficientData(t *testing.T) {
	svc, deps := newAnalytics(t)
	userID := uuid.New()
	now := time.Now().UTC()

	specs := make([]eventSpec, 0, minPatternDataPoints-1)
	for i := 0; i < minPatternDataPoints-1; i++ {
		specs = append(specs, eventSpec{eventType: types.EventPageView, sessionID: "s1", at: now.Add(-time.Duration(i) * time.Minute)})
	}
	seedEvents(t, deps.db, userID, specs)

	pattern, err := svc.IdentifyLearningPatterns(context.Background(), userID)
	if err != nil {
		t.Fatalf("IdentifyLearningPatterns: %v", err)
	}
	if pattern != nil {
		t.Errorf("expected nil pattern below data threshold, got %+v", pattern)
	}
}

func TestIdentifyLearningPatternsVisualStyle(t *testing.T) {
	svc, deps := newAnalytics(t)
	userID := uuid.New()
	now := time.Now().UTC()

	specs := []eventSpec{}
	for i := 0; i < 9; i++ {
		specs = append(specs, eventSpec{
			eventType: types.EventContentInteraction,
			sessionID: "s1",
			at:        now.Add(-time.Duration(i) * time.Hour),
			metadata:  map[string]any{types.MetaContentType: "video"},
		})
	}
	for i := 0; i < 3; i++ {
		specs = append(specs, eventSpec{
			eventType: types.EventContentInteraction,
			sessionID: "s2",
			at:        now.Add(-time.Duration(10+i) * time.Hour),
			metadata:  map[string]any{types.MetaContentType: "article"},
		})
	}
	seedEvents(t, deps.db, userID, specs)

	pattern, err := svc.IdentifyLearningPatterns(context.Background(), userID)
	if err != nil {
		t.Fatalf("IdentifyLearningPatterns: %v", err)
	}
	if pattern == nil {
		t.Fatal("expected pattern, got nil")
	}
	if pattern.PatternType != types.StyleVisual {
		t.Errorf("PatternType = %q, want %q", pattern.PatternType, types.StyleVisual)
	}
	if math.Abs(pattern.ConfidenceScore-0.75) > 1e-9 {
		t.Errorf("ConfidenceScore = %v, want 0.75", pattern.ConfidenceScore)
	}
	if pattern.DataPointsCount != 12 {
		t.Errorf("DataPointsCount = %d, want 12", pattern.DataPointsCount)
	}
}

func TestIdentifyLearningPatternsUntaggedEventsUnknownStyle(t *testing.T) {
	svc, deps := newAnalytics(t)
	userID := uuid.New()
	now := time.Now().UTC()

	specs := make([]eventSpec, 0, 12)
	for i := 0; i < 12; i++ {
		specs = append(specs, eventSpec{eventType: types.EventPageView, sessionID: "s1", at: now.Add(-time.Duration(i) * time.Minute)})
	}
	seedEvents(t, deps.db, userID, specs)

	pattern, err := svc.IdentifyLearningPatterns(context.Background(), userID)
	if err != nil {
		t.Fatalf("IdentifyLearningPatterns: %v", err)
	}
	if pattern == nil {
		t.Fatal("expected pattern, got nil")
	}
	if pattern.PatternType != types.StyleUnknown {
		t.Errorf("PatternType = %q, want %q", pattern.PatternType, types.StyleUnknown)
	}
	if pattern.ConfidenceScore != 0 {
		t.Errorf("ConfidenceScore = %v, want 0", pattern.ConfidenceScore)
	}
}

func TestAnalyzeTopicPerformanceAsymmetry(t *testing.T) {
	now := time.Now().UTC()
	events := []*types.BehaviorEvent{
		testEvent(types.EventChapterStart, now, map[string]any{types.MetaTopic: "algebra"}),
		testEvent(types.EventChapterComplete, now.Add(time.Hour), map[string]any{types.MetaTopic: "algebra"}),
		testEvent(types.EventChapterStart, now.Add(2*time.Hour), map[string]any{types.MetaTopic: "calculus"}),
	}

	strong, challenging := analyzeTopicPerformance(events)
	if len(strong) != 1 || strong[0] != "algebra" {
		t.Errorf("strong = %v, want [algebra]", strong)
	}
	if len(challenging) != 1 || challenging[0] != "calculus" {
		t.Errorf("challenging = %v, want [calculus]", challenging)
	}
}

func TestCalculateDifficultyProgressionRate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("below minimum completes", func(t *testing.T) {
		events := []*types.BehaviorEvent{
			testEvent(types.EventChapterComplete, now, nil),
			testEvent(types.EventChapterComplete, now.Add(24*time.Hour), nil),
		}
		if rate := calculateDifficultyProgressionRate(events); rate != nil {
			t.Errorf("rate = %v, want nil", *rate)
		}
	})

	t.Run("one complete per day", func(t *testing.T) {
		events := []*types.BehaviorEvent{
			testEvent(types.EventChapterComplete, now, nil),
			testEvent(types.EventChapterComplete, now.Add(24*time.Hour), nil),
			testEvent(types.EventChapterComplete, now.Add(48*time.Hour), nil),
		}
		rate := calculateDifficultyProgressionRate(events)
		if rate == nil {
			t.Fatal("expected rate, got nil")
		}
		if math.Abs(*rate-1.0) > 1e-9 {
			t.Errorf("rate = %v, want 1.0", *rate)
		}
	})

	t.Run("zero span", func(t *testing.T) {
		events := []*types.BehaviorEvent{
			testEvent(types.EventChapterComplete, now, nil),
			testEvent(types.EventChapterComplete, now, nil),
			testEvent(types.EventChapterComplete, now, nil),
		}
		if rate := calculateDifficultyProgressionRate(events); rate != nil {
			t.Errorf("rate = %v, want nil for zero span", *rate)
		}
	})
}

func TestAnalyzePreferredLearningTimes(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events := []*types.BehaviorEvent{
		testEvent(types.EventPageView, base.Add(9*time.Hour), nil),
		testEvent(types.EventPageView, base.Add(9*time.Hour+10*time.Minute), nil),
		testEvent(types.EventPageView, base.Add(9*time.Hour+20*time.Minute), nil),
		testEvent(types.EventPageView, base.Add(21*time.Hour), nil),
	}

	hours := analyzePreferredLearningTimes(events)
	if len(hours) != 1 || hours[0] != 9 {
		t.Errorf("hours = %v, want [9]", hours)
	}
}

func testEvent(eventType string, at time.Time, metadata map[string]any) *types.BehaviorEvent {
	e := &types.BehaviorEvent{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		EventType: eventType,
		Timestamp: at,
	}
	if len(metadata) > 0 {
		e.Metadata = mustJSON(metadata)
	}
	return e
}
