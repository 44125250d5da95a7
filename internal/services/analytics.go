package services

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

const (
	// minPatternDataPoints is the event count below which no learning
	// pattern is derived. Below it there is no statistical basis, so
	// IdentifyLearningPatterns returns nil rather than fabricating one.
	minPatternDataPoints = 10

	// minProgressionCompletes is how many chapter_complete events are
	// needed before a difficulty progression rate is computed. One data
	// point is not a rate.
	minProgressionCompletes = 3

	// patternWindow is the rolling window patterns are recomputed over.
	patternWindow = 90 * 24 * time.Hour
)

// Per-event-type engagement weights. Completion events signal much more
// attentiveness than passive views.
var engagementWeights = map[string]float64{
	types.EventPageView:           0.10,
	types.EventCourseStart:        0.40,
	types.EventCourseComplete:     1.00,
	types.EventChapterStart:       0.30,
	types.EventChapterComplete:    0.75,
	types.EventContentInteraction: 0.45,
	types.EventAssessmentStart:    0.50,
	types.EventAssessmentComplete: 0.85,
}

// Content-type categories mapped onto learning styles.
var contentTypeStyles = map[string]string{
	"video":       types.StyleVisual,
	"image":       types.StyleVisual,
	"diagram":     types.StyleVisual,
	"infographic": types.StyleVisual,
	"text":        types.StyleReading,
	"article":     types.StyleReading,
	"document":    types.StyleReading,
	"interactive": types.StyleKinesthetic,
	"simulation":  types.StyleKinesthetic,
	"exercise":    types.StyleKinesthetic,
	"audio":       types.StyleAuditory,
	"podcast":     types.StyleAuditory,
}

// ScoreEvent derives the normalized [0,1] engagement score for one event:
// the event-type weight plus a small boost for sustained duration.
func ScoreEvent(eventType string, durationSeconds float64) float64 {
	weight, ok := engagementWeights[eventType]
	if !ok {
		weight = 0.20
	}
	boost := math.Min(durationSeconds/600.0, 1.0) * 0.20
	return types.Clamp01(weight + boost)
}

type AnalyticsService interface {
	CalculateEngagementMetrics(ctx context.Context, userID uuid.UUID, windowHours int) (*types.EngagementMetrics, error)
	IdentifyLearningPatterns(ctx context.Context, userID uuid.UUID) (*types.LearningPattern, error)
	CheckHealth(ctx context.Context) types.HealthReport
}

type analyticsService struct {
	db          *gorm.DB
	log         *logger.Logger
	eventRepo   repos.BehaviorEventRepo
	patternRepo repos.LearningPatternRepo
}

func NewAnalyticsService(db *gorm.DB, baseLog *logger.Logger, eventRepo repos.BehaviorEventRepo, patternRepo repos.LearningPatternRepo) AnalyticsService {
	return &analyticsService{
		db:          db,
		log:         baseLog.With("service", "AnalyticsService"),
		eventRepo:   eventRepo,
		patternRepo: patternRepo,
	}
}

// CalculateEngagementMetrics aggregates events inside the window. No data
// yields zeroed metrics, not an error.
func (s *analyticsService) CalculateEngagementMetrics(ctx context.Context, userID uuid.UUID, windowHours int) (*types.EngagementMetrics, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	metrics := &types.EngagementMetrics{UserID: userID, WindowHours: windowHours}

	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)
	events, err := s.eventRepo.GetByUserSince(ctx, nil, userID, since)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return metrics, nil
	}

	sessions := map[string]struct{}{}
	var scoreSum float64
	for _, e := range events {
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		metrics.TotalTimeSpent += e.DurationSeconds
		switch e.EventType {
		case types.EventContentInteraction:
			metrics.TotalInteractions++
		case types.EventPageView:
			metrics.TotalPageViews++
		}
		score := e.EngagementScore
		if score == 0 {
			score = ScoreEvent(e.EventType, e.DurationSeconds)
		}
		scoreSum += score
	}
	metrics.TotalSessions = len(sessions)
	metrics.AverageEngagementScore = scoreSum / float64(len(events))
	return metrics, nil
}

// IdentifyLearningPatterns recomputes the user's pattern from the rolling
// event window and overwrites the stored row. It returns (nil, nil) when
// the user has fewer events than the minimum data-point threshold.
func (s *analyticsService) IdentifyLearningPatterns(ctx context.Context, userID uuid.UUID) (*types.LearningPattern, error) {
	count, err := s.eventRepo.CountByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if count < minPatternDataPoints {
		s.log.Debug("insufficient events for pattern", "user_id", userID, "count", count)
		return nil, nil
	}

	since := time.Now().UTC().Add(-patternWindow)
	events, err := s.eventRepo.GetByUserSince(ctx, nil, userID, since)
	if err != nil {
		return nil, err
	}
	if len(events) < minPatternDataPoints {
		return nil, nil
	}

	style, confidence := analyzeLearningStyle(events)
	strong, challenging := analyzeTopicPerformance(events)

	pattern := &types.LearningPattern{
		UserID:                    userID,
		PatternType:               style,
		ConfidenceScore:           confidence,
		PreferredContentTypes:     mustJSON(analyzeContentPreferences(events)),
		OptimalSessionDuration:    calculateOptimalSessionDuration(events),
		DifficultyProgressionRate: calculateDifficultyProgressionRate(events),
		PreferredLearningTimes:    mustJSON(analyzePreferredLearningTimes(events)),
		AverageAttentionSpan:      calculateAttentionSpan(events),
		StrongTopics:              mustJSON(strong),
		ChallengingTopics:         mustJSON(challenging),
		DataPointsCount:           len(events),
		LastCalculated:            time.Now().UTC(),
	}
	if err := s.patternRepo.Upsert(ctx, nil, pattern); err != nil {
		return nil, err
	}
	return pattern, nil
}

// CheckHealth times a representative aggregation query.
func (s *analyticsService) CheckHealth(ctx context.Context) types.HealthReport {
	report := types.HealthReport{
		Service:   "analytics_processing",
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{},
	}
	start := time.Now()
	_, err := s.eventRepo.CourseEventCounts(ctx, nil, start.Add(-time.Hour), nil)
	report.ResponseTimeMS = float64(time.Since(start).Milliseconds())
	if err != nil {
		report.Status = types.HealthCritical
		report.Message = "event aggregation failing"
		report.Details["error"] = err.Error()
		return report
	}
	report.Status = types.HealthHealthy
	report.Message = "analytics processing operational"
	return report
}

// analyzeLearningStyle tallies metadata content_type across events and maps
// the dominant category to a style. Confidence is the dominant share of all
// tagged events. No tagged events means no basis: unknown with zero
// confidence.
func analyzeLearningStyle(events []*types.BehaviorEvent) (string, float64) {
	styleCounts := map[string]int{}
	total := 0
	for _, e := range events {
		ct := e.MetadataString(types.MetaContentType)
		if ct == "" {
			continue
		}
		style, ok := contentTypeStyles[ct]
		if !ok {
			continue
		}
		styleCounts[style]++
		total++
	}
	if total == 0 {
		return types.StyleUnknown, 0.0
	}

	dominant := types.StyleUnknown
	best := 0
	for style, n := range styleCounts {
		if n > best {
			dominant = style
			best = n
		}
	}
	return dominant, float64(best) / float64(total)
}

// calculateOptimalSessionDuration averages the per-session time span in
// minutes across sessions with at least two events.
func calculateOptimalSessionDuration(events []*types.BehaviorEvent) float64 {
	bySession := map[string][]time.Time{}
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		bySession[e.SessionID] = append(bySession[e.SessionID], e.Timestamp)
	}

	var sum float64
	var n int
	for _, stamps := range bySession {
		if len(stamps) < 2 {
			continue
		}
		minT, maxT := stamps[0], stamps[0]
		for _, t := range stamps[1:] {
			if t.Before(minT) {
				minT = t
			}
			if t.After(maxT) {
				maxT = t
			}
		}
		sum += maxT.Sub(minT).Minutes()
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// analyzePreferredLearningTimes histograms event hour-of-day and returns
// the hours with above-average frequency, sorted ascending.
func analyzePreferredLearningTimes(events []*types.BehaviorEvent) []int {
	if len(events) == 0 {
		return []int{}
	}
	hourCounts := map[int]int{}
	for _, e := range events {
		hourCounts[e.Timestamp.UTC().Hour()]++
	}
	avg := float64(len(events)) / float64(len(hourCounts))

	var hours []int
	for hour, n := range hourCounts {
		if float64(n) >= avg {
			hours = append(hours, hour)
		}
	}
	sort.Ints(hours)
	return hours
}

// calculateAttentionSpan is the mean gap in minutes between consecutive
// events within the same session, a proxy for sustained focus.
func calculateAttentionSpan(events []*types.BehaviorEvent) float64 {
	bySession := map[string][]time.Time{}
	for _, e := range events {
		if e.SessionID == "" {
			continue
		}
		bySession[e.SessionID] = append(bySession[e.SessionID], e.Timestamp)
	}

	var sum float64
	var n int
	for _, stamps := range bySession {
		if len(stamps) < 2 {
			continue
		}
		sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
		for i := 1; i < len(stamps); i++ {
			sum += stamps[i].Sub(stamps[i-1]).Minutes()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// analyzeContentPreferences ranks metadata content_type values by
// frequency, most frequent first.
func analyzeContentPreferences(events []*types.BehaviorEvent) []string {
	counts := map[string]int{}
	for _, e := range events {
		if ct := e.MetadataString(types.MetaContentType); ct != "" {
			counts[ct]++
		}
	}
	ranked := make([]string, 0, len(counts))
	for ct := range counts {
		ranked = append(ranked, ct)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// calculateDifficultyProgressionRate is chapter completions per day over
// the observed span. It is undefined (nil) below the minimum completion
// count: a rate is never fabricated from a single data point.
func calculateDifficultyProgressionRate(events []*types.BehaviorEvent) *float64 {
	var stamps []time.Time
	for _, e := range events {
		if e.EventType == types.EventChapterComplete {
			stamps = append(stamps, e.Timestamp)
		}
	}
	if len(stamps) < minProgressionCompletes {
		return nil
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	spanDays := stamps[len(stamps)-1].Sub(stamps[0]).Hours() / 24.0
	if spanDays <= 0 {
		return nil
	}
	rate := float64(len(stamps)-1) / spanDays
	return &rate
}

// analyzeTopicPerformance classifies each topic seen in a chapter_start:
// strong when a matching chapter_complete exists, challenging when started
// but never completed. Absence of completion is the challenge signal.
func analyzeTopicPerformance(events []*types.BehaviorEvent) (strong []string, challenging []string) {
	started := map[string]struct{}{}
	completed := map[string]struct{}{}
	for _, e := range events {
		topic := e.MetadataString(types.MetaTopic)
		if topic == "" {
			continue
		}
		switch e.EventType {
		case types.EventChapterStart:
			started[topic] = struct{}{}
		case types.EventChapterComplete:
			completed[topic] = struct{}{}
		}
	}

	strong = []string{}
	challenging = []string{}
	for topic := range started {
		if _, ok := completed[topic]; ok {
			strong = append(strong, topic)
		} else {
			challenging = append(challenging, topic)
		}
	}
	sort.Strings(strong)
	sort.Strings(challenging)
	return strong, challenging
}

// mustJSON marshals v for a jsonb column, substituting an empty document on
// failure so one bad value never aborts a pattern write.
func mustJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(b)
}
