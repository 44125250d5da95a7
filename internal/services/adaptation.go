package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

const (
	// minPacingEvents is the least recent course behavior needed before a
	// pacing adjustment is even attempted.
	minPacingEvents = 5

	// pacingConfidenceThreshold gates pacing output: a result below it is
	// suppressed entirely rather than surfaced.
	pacingConfidenceThreshold = 0.60

	// significantDifficultyDelta is the smallest assessment difficulty
	// change worth acting on. Smaller deltas are a no-op to avoid
	// thrashing difficulty on marginal signal.
	significantDifficultyDelta = 0.10

	assessmentPerformanceWindow = 30 * 24 * time.Hour
)

type AdaptationService interface {
	AdjustPacing(ctx context.Context, userID, courseID uuid.UUID) (*types.PacingAdjustment, error)
	ProvideSupplementaryContent(ctx context.Context, userID uuid.UUID, topic string, maxRecommendations int) ([]types.SupplementaryMaterial, error)
	ModifyAssessmentDifficulty(ctx context.Context, userID, assessmentID uuid.UUID, metadata map[string]interface{}) (*types.AssessmentModification, error)
}

type adaptationService struct {
	db             *gorm.DB
	log            *logger.Logger
	profileRepo    repos.LearningProfileRepo
	eventRepo      repos.BehaviorEventRepo
	courseRepo     repos.CourseRepo
	chapterRepo    repos.ChapterRepo
	assessmentRepo repos.AssessmentRepo
}

func NewAdaptationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profileRepo repos.LearningProfileRepo,
	eventRepo repos.BehaviorEventRepo,
	courseRepo repos.CourseRepo,
	chapterRepo repos.ChapterRepo,
	assessmentRepo repos.AssessmentRepo,
) AdaptationService {
	return &adaptationService{
		db:             db,
		log:            baseLog.With("service", "AdaptationService"),
		profileRepo:    profileRepo,
		eventRepo:      eventRepo,
		courseRepo:     courseRepo,
		chapterRepo:    chapterRepo,
		assessmentRepo: assessmentRepo,
	}
}

// AdjustPacing returns (nil, nil) without a profile, without enough recent
// course behavior, or when the computed confidence misses the threshold.
// No false adaptation.
func (s *adaptationService) AdjustPacing(ctx context.Context, userID, courseID uuid.UUID) (*types.PacingAdjustment, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	events, err := s.eventRepo.GetByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, err
	}
	if len(events) < minPacingEvents {
		s.log.Debug("insufficient course behavior for pacing", "user_id", userID, "course_id", courseID, "events", len(events))
		return nil, nil
	}

	currentPace := s.calculateCurrentPace(ctx, courseID, events)
	perf := analyzePerformancePatterns(events)

	recommendedPace, factor, reason, confidence := calculatePaceAdjustment(currentPace, perf, profile, len(events))
	if confidence < pacingConfidenceThreshold {
		s.log.Debug("pacing adjustment suppressed", "user_id", userID, "course_id", courseID, "confidence", confidence)
		return nil, nil
	}

	return &types.PacingAdjustment{
		UserID:           userID,
		CourseID:         courseID,
		CurrentPace:      currentPace,
		RecommendedPace:  recommendedPace,
		AdjustmentFactor: factor,
		Reason:           reason,
		Confidence:       confidence,
	}, nil
}

// calculateCurrentPace compares observed chapter-completion rate against
// the course's expected rate. A course or chapter lookup miss falls back to
// the neutral pace 1.0.
func (s *adaptationService) calculateCurrentPace(ctx context.Context, courseID uuid.UUID, events []*types.BehaviorEvent) float64 {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil || course == nil || course.EstimatedHours <= 0 {
		return 1.0
	}
	totalChapters, err := s.chapterRepo.CountByCourse(ctx, nil, courseID)
	if err != nil || totalChapters == 0 {
		return 1.0
	}

	var completed int
	var first, last time.Time
	for _, e := range events {
		if e.EventType == types.EventChapterComplete {
			completed++
		}
		if first.IsZero() || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	daysInCourse := last.Sub(first).Hours() / 24.0
	if daysInCourse < 1.0/24.0 {
		daysInCourse = 1.0 / 24.0
	}
	if completed == 0 {
		return 0.5
	}

	// Expected cadence assumes roughly an hour of study per day.
	actualRate := float64(completed) / daysInCourse
	expectedRate := float64(totalChapters) / course.EstimatedHours
	if expectedRate <= 0 {
		return 1.0
	}
	pace := actualRate / expectedRate
	return math.Max(0.1, math.Min(pace, 3.0))
}

type performanceMetrics struct {
	completionRate         float64
	averageTimePerActivity float64
	engagementTrend        float64
	struggleIndicators     float64
	consistencyScore       float64
}

// analyzePerformancePatterns derives performance metrics from course
// events. Empty input yields all-zero metrics, never an error.
func analyzePerformancePatterns(events []*types.BehaviorEvent) performanceMetrics {
	perf := performanceMetrics{}
	if len(events) == 0 {
		return perf
	}

	sorted := make([]*types.BehaviorEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var (
		starts, completes int
		durationSum       float64
		struggles         float64
		struggleSamples   float64
	)
	activeDays := map[string]struct{}{}
	for _, e := range sorted {
		durationSum += e.DurationSeconds
		activeDays[e.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
		switch e.EventType {
		case types.EventChapterStart, types.EventAssessmentStart:
			starts++
		case types.EventChapterComplete:
			completes++
		case types.EventAssessmentComplete:
			completes++
			struggleSamples++
			score := e.MetadataFloat(types.MetaScore, -1)
			attempts := e.MetadataFloat(types.MetaAttempts, 1)
			if (score >= 0 && score < 60) || attempts > 2 {
				struggles++
			}
		}
	}

	if starts > 0 {
		perf.completionRate = types.Clamp01(float64(completes) / float64(starts))
	}
	perf.averageTimePerActivity = durationSum / float64(len(sorted))

	// Trend: recent-half engagement minus earlier-half engagement.
	half := len(sorted) / 2
	if half > 0 {
		earlier := meanEngagement(sorted[:half])
		recent := meanEngagement(sorted[half:])
		perf.engagementTrend = recent - earlier
	}

	if struggleSamples > 0 {
		perf.struggleIndicators = struggles / struggleSamples
	}
	// Incomplete starts also indicate struggle.
	if starts > completes && starts > 0 {
		perf.struggleIndicators = types.Clamp01(perf.struggleIndicators + float64(starts-completes)/float64(starts)*0.5)
	}

	spanDays := sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp).Hours()/24.0 + 1
	if spanDays > 0 {
		perf.consistencyScore = types.Clamp01(float64(len(activeDays)) / spanDays)
	}
	return perf
}

func meanEngagement(events []*types.BehaviorEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		score := e.EngagementScore
		if score == 0 {
			score = ScoreEvent(e.EventType, e.DurationSeconds)
		}
		sum += score
	}
	return sum / float64(len(events))
}

// calculatePaceAdjustment maps performance metrics and the profile into a
// recommendation, a factor, a reason, and a confidence in [0,1].
func calculatePaceAdjustment(currentPace float64, perf performanceMetrics, profile *types.UserLearningProfile, eventCount int) (string, float64, string, float64) {
	pace := types.PaceNormal
	factor := 1.0
	reason := "Current pace is working well"

	switch {
	case perf.struggleIndicators > 0.5 || (perf.completionRate < 0.4 && perf.engagementTrend <= 0):
		pace = types.PaceSlower
		factor = 0.75
		reason = "Recent struggle signals suggest slowing down and consolidating"
	case perf.completionRate >= 0.8 && perf.struggleIndicators < 0.2 && perf.engagementTrend >= 0:
		pace = types.PaceFaster
		factor = 1.25
		reason = "Strong completion and engagement support a faster pace"
	case currentPace < 0.5 && perf.engagementTrend > 0:
		pace = types.PaceNormal
		factor = 1.1
		reason = "Engagement is recovering, easing back toward normal pace"
	}

	// More data and steadier habits mean more trustworthy output.
	confidence := types.Clamp01(0.3 + math.Min(float64(eventCount)/40.0, 0.4) + 0.3*perf.consistencyScore)
	return pace, factor, reason, confidence
}

// ProvideSupplementaryContent synthesizes remedial material for identified
// gaps. No profile or no gaps yields an empty list: busywork is never
// manufactured.
func (s *adaptationService) ProvideSupplementaryContent(ctx context.Context, userID uuid.UUID, topic string, maxRecommendations int) ([]types.SupplementaryMaterial, error) {
	if maxRecommendations <= 0 {
		maxRecommendations = 5
	}
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return []types.SupplementaryMaterial{}, nil
	}

	since := time.Now().UTC().Add(-assessmentPerformanceWindow)
	events, err := s.eventRepo.GetByUserSince(ctx, nil, userID, since)
	if err != nil {
		return nil, err
	}

	gaps := identifyLearningGaps(profile, events, topic)
	if len(gaps) == 0 {
		return []types.SupplementaryMaterial{}, nil
	}

	materials := []types.SupplementaryMaterial{}
	for _, gap := range gaps {
		materials = append(materials, generateSupplementaryMaterials(gap, profile)...)
	}
	sort.Slice(materials, func(i, j int) bool {
		if materials[i].Priority != materials[j].Priority {
			return materials[i].Priority < materials[j].Priority
		}
		return materials[i].RelevanceScore > materials[j].RelevanceScore
	})
	if len(materials) > maxRecommendations {
		materials = materials[:maxRecommendations]
	}
	return materials, nil
}

type learningGap struct {
	topic    string
	gapType  string
	severity string
}

// identifyLearningGaps flags challenging-topic gaps from the profile
// (severity high) and behavioral gaps from recent low-completion or
// low-engagement topics (medium/low). A topic argument narrows the result.
func identifyLearningGaps(profile *types.UserLearningProfile, events []*types.BehaviorEvent, topicFilter string) []learningGap {
	gaps := []learningGap{}
	seen := map[string]struct{}{}

	for _, t := range decodeStringList(profile.ChallengingTopics) {
		if topicFilter != "" && t != topicFilter {
			continue
		}
		gaps = append(gaps, learningGap{topic: t, gapType: "challenging_topic", severity: "high"})
		seen[t] = struct{}{}
	}

	type topicSignal struct {
		starts, completes int
		engagementSum     float64
		count             int
	}
	byTopic := map[string]*topicSignal{}
	for _, e := range events {
		t := e.MetadataString(types.MetaTopic)
		if t == "" {
			continue
		}
		if topicFilter != "" && t != topicFilter {
			continue
		}
		sig := byTopic[t]
		if sig == nil {
			sig = &topicSignal{}
			byTopic[t] = sig
		}
		sig.count++
		score := e.EngagementScore
		if score == 0 {
			score = ScoreEvent(e.EventType, e.DurationSeconds)
		}
		sig.engagementSum += score
		switch e.EventType {
		case types.EventChapterStart:
			sig.starts++
		case types.EventChapterComplete:
			sig.completes++
		}
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		sig := byTopic[t]
		switch {
		case sig.starts > 0 && sig.completes == 0:
			gaps = append(gaps, learningGap{topic: t, gapType: "low_completion", severity: "medium"})
		case sig.count >= 3 && sig.engagementSum/float64(sig.count) < 0.3:
			gaps = append(gaps, learningGap{topic: t, gapType: "low_engagement", severity: "low"})
		}
	}
	return gaps
}

// generateSupplementaryMaterials produces remedial items for one gap.
// Challenging-topic gaps pin difficulty to beginner (remediation first);
// content type follows the learning style.
func generateSupplementaryMaterials(gap learningGap, profile *types.UserLearningProfile) []types.SupplementaryMaterial {
	difficulty := types.DifficultyBand(profile.CurrentDifficultyLevel)
	if gap.gapType == "challenging_topic" {
		difficulty = types.DifficultyBeginner
	}

	priority := 3
	relevance := 0.5
	switch gap.severity {
	case "high":
		priority = 1
		relevance = 0.9
	case "medium":
		priority = 2
		relevance = 0.7
	}

	contentType := formatForStyle(profile.LearningStyle)
	tutorialType := "tutorial"
	if profile.LearningStyle == types.StyleVisual {
		tutorialType = "video"
	}

	return []types.SupplementaryMaterial{
		{
			MaterialID:      uuid.New(),
			Title:           fmt.Sprintf("%s fundamentals refresher", gap.topic),
			ContentType:     tutorialType,
			DifficultyLevel: difficulty,
			EstimatedTime:   20,
			RelevanceScore:  relevance,
			Reason:          gapReason(gap),
			Priority:        priority,
			Topic:           gap.topic,
		},
		{
			MaterialID:      uuid.New(),
			Title:           fmt.Sprintf("Practice exercises: %s", gap.topic),
			ContentType:     contentType,
			DifficultyLevel: difficulty,
			EstimatedTime:   15,
			RelevanceScore:  relevance - 0.1,
			Reason:          gapReason(gap),
			Priority:        priority,
			Topic:           gap.topic,
		},
	}
}

func gapReason(gap learningGap) string {
	switch gap.gapType {
	case "challenging_topic":
		return fmt.Sprintf("You have found %s challenging before", gap.topic)
	case "low_completion":
		return fmt.Sprintf("Chapters on %s were started but not finished", gap.topic)
	default:
		return fmt.Sprintf("Engagement with %s has been low recently", gap.topic)
	}
}

// ModifyAssessmentDifficulty returns (nil, nil) without a profile, a
// missing assessment, no recent assessment evidence, or when the computed
// change is below the significant-change threshold.
func (s *adaptationService) ModifyAssessmentDifficulty(ctx context.Context, userID, assessmentID uuid.UUID, metadata map[string]interface{}) (*types.AssessmentModification, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}
	assessment, err := s.assessmentRepo.GetByID(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment == nil {
		return nil, nil
	}

	since := time.Now().UTC().Add(-assessmentPerformanceWindow)
	events, err := s.eventRepo.GetByUserSince(ctx, nil, userID, since)
	if err != nil {
		return nil, err
	}
	timeLimit := assessment.TimeLimitSeconds
	if v, ok := metadata["time_limit_seconds"].(float64); ok && v > 0 {
		timeLimit = int(v)
	}
	perf, ok := getRecentAssessmentPerformance(events, timeLimit)
	if !ok {
		return nil, nil
	}

	modified := calculateAssessmentDifficulty(assessment.DifficultyLevel, perf)
	delta := modified - assessment.DifficultyLevel
	if math.Abs(delta) < significantDifficultyDelta {
		s.log.Debug("assessment difficulty change below threshold", "assessment_id", assessmentID, "delta", delta)
		return nil, nil
	}

	increase := delta > 0
	return &types.AssessmentModification{
		AssessmentID:        assessmentID,
		OriginalDifficulty:  assessment.DifficultyLevel,
		ModifiedDifficulty:  modified,
		QuestionAdjustments: generateQuestionAdjustments(increase, profile.LearningStyle),
		TimeAdjustments:     generateTimeAdjustments(profile, perf),
		SupportLevel:        determineSupportLevel(perf),
		ModificationReason:  modificationReason(increase, perf),
	}, nil
}

type assessmentPerformance struct {
	averageScore     float64
	completionRate   float64
	averageTimeRatio float64
	trend            float64
}

// getRecentAssessmentPerformance aggregates assessment events from the
// window. The boolean is false when there is no completed-assessment
// evidence to act on.
func getRecentAssessmentPerformance(events []*types.BehaviorEvent, timeLimitSeconds int) (assessmentPerformance, bool) {
	perf := assessmentPerformance{averageTimeRatio: 1.0}

	var starts int
	var scores []float64
	var ratioSum float64
	var ratioCount int
	for _, e := range events {
		switch e.EventType {
		case types.EventAssessmentStart:
			starts++
		case types.EventAssessmentComplete:
			score := e.MetadataFloat(types.MetaScore, -1)
			if score >= 0 {
				scores = append(scores, score)
			}
			if timeLimitSeconds > 0 {
				spent := e.MetadataFloat(types.MetaTimeSpent, e.DurationSeconds)
				if spent > 0 {
					ratioSum += spent / float64(timeLimitSeconds)
					ratioCount++
				}
			}
		}
	}
	if len(scores) == 0 {
		return perf, false
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	perf.averageScore = sum / float64(len(scores))

	if starts > 0 {
		perf.completionRate = types.Clamp01(float64(len(scores)) / float64(starts))
	} else {
		perf.completionRate = 1.0
	}
	if ratioCount > 0 {
		perf.averageTimeRatio = ratioSum / float64(ratioCount)
	}

	half := len(scores) / 2
	if half > 0 {
		var earlier, recent float64
		for _, s := range scores[:half] {
			earlier += s
		}
		for _, s := range scores[half:] {
			recent += s
		}
		perf.trend = recent/float64(len(scores)-half) - earlier/float64(half)
	}
	return perf, true
}

// calculateAssessmentDifficulty raises difficulty on strong recent
// performance, lowers it when the learner struggles, and nudges otherwise.
func calculateAssessmentDifficulty(original float64, perf assessmentPerformance) float64 {
	target := original
	switch {
	case perf.averageScore >= 80 && perf.completionRate >= 0.8 && perf.averageTimeRatio <= 0.8:
		target += 0.15
		if perf.trend > 0 {
			target += 0.05
		}
	case perf.averageScore < 50 || perf.completionRate < 0.5:
		target -= 0.15
		if perf.trend < 0 {
			target -= 0.05
		}
	case perf.averageScore >= 70:
		target += 0.05
	case perf.averageScore < 60:
		target -= 0.05
	}
	return types.Clamp01(target)
}

// generateQuestionAdjustments toggles feature flags for the new difficulty
// direction. Visual learners always get the visual question variants.
func generateQuestionAdjustments(increase bool, style string) map[string]bool {
	adjustments := map[string]bool{}
	if increase {
		adjustments["add_complex_scenarios"] = true
		adjustments["reduce_hints"] = true
		adjustments["add_multi_step_problems"] = true
	} else {
		adjustments["add_hints"] = true
		adjustments["break_down_complex_questions"] = true
		adjustments["add_multiple_choice"] = true
	}
	if style == types.StyleVisual {
		adjustments["add_diagrams"] = true
		adjustments["use_visual_questions"] = true
		adjustments["include_charts"] = true
	}
	return adjustments
}

// generateTimeAdjustments grants more time and break allowances for short
// attention spans or low completion.
func generateTimeAdjustments(profile *types.UserLearningProfile, perf assessmentPerformance) map[string]interface{} {
	adjustments := map[string]interface{}{"time_multiplier": 1.0}
	shortAttention := profile.AttentionSpan > 0 && profile.AttentionSpan < 15
	lowCompletion := perf.completionRate < 0.5
	if shortAttention || lowCompletion {
		multiplier := 1.25
		if shortAttention && lowCompletion {
			multiplier = 1.5
		}
		adjustments["time_multiplier"] = multiplier
		adjustments["allow_breaks"] = true
		adjustments["provide_time_warnings"] = true
	}
	return adjustments
}

// determineSupportLevel: strong recent performance needs little support,
// poor performance needs a lot.
func determineSupportLevel(perf assessmentPerformance) string {
	switch {
	case perf.averageScore >= 75 && perf.completionRate >= 0.75:
		return types.SupportLow
	case perf.averageScore < 50 || perf.completionRate < 0.5:
		return types.SupportHigh
	default:
		return types.SupportMedium
	}
}

func modificationReason(increase bool, perf assessmentPerformance) string {
	if increase {
		return fmt.Sprintf("Recent average score %.0f with strong completion supports harder questions", perf.averageScore)
	}
	return fmt.Sprintf("Recent average score %.0f suggests easing difficulty and adding support", perf.averageScore)
}
