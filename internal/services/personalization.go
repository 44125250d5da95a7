package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

const (
	// defaultAdaptationRate controls how fast drifting profile fields move
	// toward fresh observations.
	defaultAdaptationRate = 0.30

	// profileWindowHours is the engagement window profile refreshes read.
	profileWindowHours = 24 * 30
)

type PersonalizationService interface {
	GenerateUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error)
	CreateUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error)
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error)
	RecommendCourses(ctx context.Context, userID uuid.UUID, limit int) ([]types.CourseRecommendation, error)
	AdaptContentDifficulty(ctx context.Context, contentID uuid.UUID, profile *types.UserLearningProfile) (*types.AdaptedContent, error)
	CheckHealth(ctx context.Context) types.HealthReport
}

type personalizationService struct {
	db          *gorm.DB
	log         *logger.Logger
	profileRepo repos.LearningProfileRepo
	patternRepo repos.LearningPatternRepo
	eventRepo   repos.BehaviorEventRepo
	analytics   AnalyticsService
	recommender RecommendationService
}

func NewPersonalizationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profileRepo repos.LearningProfileRepo,
	patternRepo repos.LearningPatternRepo,
	eventRepo repos.BehaviorEventRepo,
	analytics AnalyticsService,
	recommender RecommendationService,
) PersonalizationService {
	return &personalizationService{
		db:          db,
		log:         baseLog.With("service", "PersonalizationService"),
		profileRepo: profileRepo,
		patternRepo: patternRepo,
		eventRepo:   eventRepo,
		analytics:   analytics,
		recommender: recommender,
	}
}

// GetUserProfile reads the stored profile without recomputation. Missing
// profile yields (nil, nil).
func (s *personalizationService) GetUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error) {
	return s.profileRepo.GetByUserID(ctx, nil, userID)
}

// CreateUserProfile creates the default profile, failing when one already
// exists: one profile per user.
func (s *personalizationService) CreateUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error) {
	existing, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrProfileExists
	}
	profile := defaultProfile(userID)
	if err := s.profileRepo.Create(ctx, nil, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GenerateUserProfile creates the profile on first call and refreshes the
// drifting fields on every call: new = old*(1-rate) + observed*rate,
// clamped to [0,1]. Smooth, bounded adaptation instead of abrupt jumps
// from a noisy single session.
func (s *personalizationService) GenerateUserProfile(ctx context.Context, userID uuid.UUID) (*types.UserLearningProfile, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	created := false
	if profile == nil {
		profile = defaultProfile(userID)
		if err := s.profileRepo.Create(ctx, nil, profile); err != nil {
			return nil, err
		}
		created = true
	}

	metrics, err := s.analytics.CalculateEngagementMetrics(ctx, userID, profileWindowHours)
	if err != nil {
		return nil, err
	}
	pattern, err := s.analytics.IdentifyLearningPatterns(ctx, userID)
	if err != nil {
		s.log.Warn("pattern refresh failed, continuing with stored pattern", "user_id", userID, "error", err)
	}
	if pattern == nil {
		pattern, _ = s.patternRepo.GetByUserID(ctx, nil, userID)
	}

	since := time.Now().UTC().Add(-time.Duration(profileWindowHours) * time.Hour)
	events, err := s.eventRepo.GetByUserSince(ctx, nil, userID, since)
	if err != nil {
		return nil, err
	}
	obs := observeSignals(events, metrics)

	rate := profile.AdaptationRate
	if rate <= 0 {
		rate = defaultAdaptationRate
	}
	if obs.hasEngagement {
		profile.EngagementScore = smooth(profile.EngagementScore, obs.engagement, rate)
	}
	if obs.hasCompletion {
		profile.CompletionRate = smooth(profile.CompletionRate, obs.completion, rate)
	}
	if obs.hasPerformance {
		profile.CurrentDifficultyLevel = smooth(profile.CurrentDifficultyLevel, obs.performance, rate)
		profile.ChallengePreference = smooth(profile.ChallengePreference, obs.performance, rate/2)
	}
	if obs.hasConsistency {
		profile.ConsistencyScore = smooth(profile.ConsistencyScore, obs.consistency, rate)
	}
	profile.CoursesCompleted = obs.coursesCompleted

	// Recomputed from the event store on every refresh. Accumulating here
	// would double-count the window each time the profile is regenerated.
	totalSeconds, err := s.eventRepo.SumDurationByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	profile.TotalLearningTime = totalSeconds / 3600.0
	profile.PreferredDifficulty = types.DifficultyBand(profile.CurrentDifficultyLevel)

	if pattern != nil {
		profile.LearningStyle = pattern.PatternType
		profile.AttentionSpan = pattern.AverageAttentionSpan
		profile.AverageSessionDuration = pattern.OptimalSessionDuration
		profile.StrongTopics = pattern.StrongTopics
		profile.ChallengingTopics = pattern.ChallengingTopics
	}

	profile.LastUpdated = time.Now().UTC()
	if err := s.profileRepo.Update(ctx, nil, profile); err != nil {
		return nil, err
	}
	if created {
		s.log.Info("learning profile created", "user_id", userID)
	}
	return profile, nil
}

// RecommendCourses delegates ranking to the recommendation service. This
// engine owns the profile, not the ranking algorithm.
func (s *personalizationService) RecommendCourses(ctx context.Context, userID uuid.UUID, limit int) ([]types.CourseRecommendation, error) {
	return s.recommender.GetCourseRecommendations(ctx, userID, limit, "")
}

// AdaptContentDifficulty maps the continuous difficulty level to a discrete
// band and picks a content format consistent with the learning style.
func (s *personalizationService) AdaptContentDifficulty(ctx context.Context, contentID uuid.UUID, profile *types.UserLearningProfile) (*types.AdaptedContent, error) {
	if profile == nil {
		return nil, nil
	}
	return &types.AdaptedContent{
		ContentID:       contentID,
		DifficultyBand:  types.DifficultyBand(profile.CurrentDifficultyLevel),
		ContentFormat:   formatForStyle(profile.LearningStyle),
		LearningStyle:   profile.LearningStyle,
		DifficultyLevel: profile.CurrentDifficultyLevel,
	}, nil
}

func (s *personalizationService) CheckHealth(ctx context.Context) types.HealthReport {
	report := types.HealthReport{
		Service:   "personalization_engine",
		Timestamp: time.Now().UTC(),
		Details:   map[string]interface{}{},
	}
	start := time.Now()
	_, err := s.profileRepo.ListOthers(ctx, nil, uuid.Nil, 1)
	report.ResponseTimeMS = float64(time.Since(start).Milliseconds())
	if err != nil {
		report.Status = types.HealthCritical
		report.Message = "profile store unreachable"
		report.Details["error"] = err.Error()
		return report
	}
	report.Status = types.HealthHealthy
	report.Message = "personalization engine operational"
	return report
}

func defaultProfile(userID uuid.UUID) *types.UserLearningProfile {
	return &types.UserLearningProfile{
		UserID:                 userID,
		LearningStyle:          types.StyleUnknown,
		PreferredDifficulty:    types.DifficultyBeginner,
		ChallengePreference:    0.5,
		CurrentDifficultyLevel: 0.3,
		AdaptationRate:         defaultAdaptationRate,
		StrongTopics:           datatypes.JSON([]byte("[]")),
		ChallengingTopics:      datatypes.JSON([]byte("[]")),
		LastUpdated:            time.Now().UTC(),
	}
}

// smooth applies the bounded exponential update. The formula tolerates
// lost-update races between concurrent writers: drift stays bounded.
func smooth(old, observed, rate float64) float64 {
	return types.Clamp01(old*(1-rate) + observed*rate)
}

type observedSignals struct {
	engagement     float64
	hasEngagement  bool
	completion     float64
	hasCompletion  bool
	performance    float64
	hasPerformance bool
	consistency    float64
	hasConsistency bool

	coursesCompleted int
}

// observeSignals derives the raw observations a profile refresh smooths
// toward. Missing evidence leaves the corresponding field untouched.
func observeSignals(events []*types.BehaviorEvent, metrics *types.EngagementMetrics) observedSignals {
	obs := observedSignals{}
	if len(events) == 0 {
		return obs
	}
	// Any event in the window carries an engagement score, including
	// session-less assessment-only activity.
	if metrics != nil {
		obs.engagement = metrics.AverageEngagementScore
		obs.hasEngagement = true
	}

	var (
		chapterStarts    int
		chapterCompletes int
		scoreSum         float64
		scoreCount       int
	)
	completedCourses := map[uuid.UUID]struct{}{}
	activeDays := map[string]struct{}{}
	var first, last time.Time

	for _, e := range events {
		activeDays[e.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
		if first.IsZero() || e.Timestamp.Before(first) {
			first = e.Timestamp
		}
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
		switch e.EventType {
		case types.EventChapterStart:
			chapterStarts++
		case types.EventChapterComplete:
			chapterCompletes++
		case types.EventCourseComplete:
			if e.CourseID != nil {
				completedCourses[*e.CourseID] = struct{}{}
			}
		case types.EventAssessmentComplete:
			score := e.MetadataFloat(types.MetaScore, -1)
			if score >= 0 {
				scoreSum += score
				scoreCount++
			}
		}
	}

	if chapterStarts > 0 {
		obs.completion = types.Clamp01(float64(chapterCompletes) / float64(chapterStarts))
		obs.hasCompletion = true
	}
	if scoreCount > 0 {
		obs.performance = types.Clamp01(scoreSum / float64(scoreCount) / 100.0)
		obs.hasPerformance = true
	}
	spanDays := last.Sub(first).Hours()/24.0 + 1
	if spanDays >= 2 {
		obs.consistency = types.Clamp01(float64(len(activeDays)) / spanDays)
		obs.hasConsistency = true
	}
	obs.coursesCompleted = len(completedCourses)
	return obs
}

func formatForStyle(style string) string {
	switch style {
	case types.StyleVisual:
		return "video"
	case types.StyleAuditory:
		return "audio"
	case types.StyleKinesthetic:
		return "interactive"
	default:
		return "article"
	}
}

// decodeStringList reads a jsonb string array, tolerating null and
// malformed documents.
func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	return out
}
