package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

func newRecommender(t *testing.T) (RecommendationService, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	svc := NewRecommendationService(deps.db, logger.NewNop(), deps.courseRepo, deps.profileRepo, deps.eventRepo)
	return svc, deps
}

func TestGetCourseRecommendationsColdStart(t *testing.T) {
	svc, deps := newRecommender(t)
	now := time.Now().UTC()

	popular := seedCourse(t, deps.db, "Intro to Go", "programming", 0.2, 10)
	quiet := seedCourse(t, deps.db, "Advanced Statistics", "math", 0.8, 20)

	// Other users drive the popularity signal.
	for i := 0; i < 5; i++ {
		seedEvents(t, deps.db, uuid.New(), []eventSpec{
			{eventType: types.EventCourseStart, sessionID: "s", courseID: &popular.ID, at: now.Add(-time.Duration(i) * time.Hour)},
		})
	}

	recs, err := svc.GetCourseRecommendations(context.Background(), uuid.New(), 10, "")
	if err != nil {
		t.Fatalf("GetCourseRecommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	top := recs[0]
	if top.CourseID != popular.ID {
		t.Errorf("top course = %v (%s), want the popular one", top.CourseID, top.Title)
	}
	if top.Reason != "Popular with other learners" {
		t.Errorf("Reason = %q", top.Reason)
	}
	if top.ContentBasedScore != 0 || top.CollaborativeScore != 0 {
		t.Errorf("cold start must not fabricate content/collaborative scores: %+v", top)
	}
	if top.RecommendedDifficulty != types.DifficultyBeginner {
		t.Errorf("RecommendedDifficulty = %q, want beginner", top.RecommendedDifficulty)
	}
	if quiet.ID == top.CourseID {
		t.Error("quiet course ranked first")
	}
}

func TestGetCourseRecommendationsExcludesCompleted(t *testing.T) {
	svc, deps := newRecommender(t)
	userID := uuid.New()
	now := time.Now().UTC()

	done := seedCourse(t, deps.db, "Finished Course", "history", 0.3, 5)
	fresh := seedCourse(t, deps.db, "Fresh Course", "history", 0.3, 5)

	profile := &types.UserLearningProfile{ID: uuid.New(), UserID: userID, LearningStyle: types.StyleUnknown, LastUpdated: now}
	if err := deps.profileRepo.Create(context.Background(), nil, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	seedEvents(t, deps.db, userID, []eventSpec{
		{eventType: types.EventCourseComplete, sessionID: "s", courseID: &done.ID, at: now.Add(-time.Hour)},
	})

	recs, err := svc.GetCourseRecommendations(context.Background(), userID, 10, "")
	if err != nil {
		t.Fatalf("GetCourseRecommendations: %v", err)
	}
	for _, rec := range recs {
		if rec.CourseID == done.ID {
			t.Errorf("completed course %s still recommended", done.Title)
		}
	}
	var sawFresh bool
	for _, rec := range recs {
		if rec.CourseID == fresh.ID {
			sawFresh = true
		}
	}
	if !sawFresh {
		t.Error("fresh course missing from recommendations")
	}
}

func TestGetCourseRecommendationsBlendedScoreBounded(t *testing.T) {
	svc, deps := newRecommender(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedCourse(t, deps.db, "Go Concurrency Patterns", "programming", 0.5, 12)
	profile := &types.UserLearningProfile{
		ID:                     uuid.New(),
		UserID:                 userID,
		LearningStyle:          types.StyleVisual,
		CurrentDifficultyLevel: 0.5,
		ChallengePreference:    0.5,
		StrongTopics:           datatypes.JSON([]byte(`["programming"]`)),
		LastUpdated:            now,
	}
	if err := deps.profileRepo.Create(context.Background(), nil, profile); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	recs, err := svc.GetCourseRecommendations(context.Background(), userID, 10, "")
	if err != nil {
		t.Fatalf("GetCourseRecommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.RecommendationScore < 0 || rec.RecommendationScore > 1 {
		t.Errorf("RecommendationScore = %v, out of [0,1]", rec.RecommendationScore)
	}
	if rec.ContentBasedScore != 1.0 {
		t.Errorf("ContentBasedScore = %v, want 1.0 for exact topic match", rec.ContentBasedScore)
	}
	if rec.LearningStyleMatchScore != 1.0 {
		t.Errorf("LearningStyleMatchScore = %v, want 1.0 for video content", rec.LearningStyleMatchScore)
	}
	if rec.Reason == "" {
		t.Error("expected a recommendation reason")
	}
}

func TestCalculateCourseSimilarityOrdering(t *testing.T) {
	ref := &types.Course{Title: "Linear Algebra Basics", Description: "Vectors and matrices", Topic: "math"}
	identical := &types.Course{Title: "Linear Algebra Basics", Description: "Different text entirely", Topic: "math"}
	related := &types.Course{Title: "Linear Algebra Advanced", Description: "Vectors and eigenvalues", Topic: "math"}
	unrelated := &types.Course{Title: "French Cooking", Description: "Sauces and pastry", Topic: "cooking"}

	simIdentical := calculateCourseSimilarity(ref, identical)
	simRelated := calculateCourseSimilarity(ref, related)
	simUnrelated := calculateCourseSimilarity(ref, unrelated)

	if simIdentical < 0.8 {
		t.Errorf("identical titles sim = %v, want >= 0.8", simIdentical)
	}
	if !(simIdentical > simRelated && simRelated > simUnrelated) {
		t.Errorf("ordering violated: identical=%v related=%v unrelated=%v", simIdentical, simRelated, simUnrelated)
	}
	if simUnrelated > 0.1 {
		t.Errorf("unrelated sim = %v, want near zero", simUnrelated)
	}
}

func TestGetSimilarCoursesMissingReference(t *testing.T) {
	svc, _ := newRecommender(t)

	recs, err := svc.GetSimilarCourses(context.Background(), uuid.New(), 5)
	if err != nil {
		t.Fatalf("GetSimilarCourses: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(recs) = %d, want 0 for unknown reference", len(recs))
	}
}

func TestGetTrendingCourses(t *testing.T) {
	svc, deps := newRecommender(t)
	now := time.Now().UTC()

	hot := seedCourse(t, deps.db, "Hot Course", "data", 0.4, 8)
	stale := seedCourse(t, deps.db, "Stale Course", "data", 0.4, 8)

	for i := 0; i < 3; i++ {
		seedEvents(t, deps.db, uuid.New(), []eventSpec{
			{eventType: types.EventCourseStart, sessionID: "s", courseID: &hot.ID, at: now.Add(-time.Duration(i) * time.Hour)},
		})
	}
	// Outside the trending window: must not count.
	seedEvents(t, deps.db, uuid.New(), []eventSpec{
		{eventType: types.EventCourseStart, sessionID: "s", courseID: &stale.ID, at: now.Add(-30 * 24 * time.Hour)},
	})

	recs, err := svc.GetTrendingCourses(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetTrendingCourses: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	if recs[0].CourseID != hot.ID {
		t.Errorf("trending course = %s, want Hot Course", recs[0].Title)
	}
	if recs[0].Reason != "Trending with learners this week" {
		t.Errorf("Reason = %q", recs[0].Reason)
	}
}

func TestProfileSimilarity(t *testing.T) {
	a := &types.UserLearningProfile{
		CompletionRate: 0.8, EngagementScore: 0.7,
		ChallengePreference: 0.5, CurrentDifficultyLevel: 0.4,
		LearningStyle: types.StyleVisual,
	}
	twin := &types.UserLearningProfile{
		CompletionRate: 0.8, EngagementScore: 0.7,
		ChallengePreference: 0.5, CurrentDifficultyLevel: 0.4,
		LearningStyle: types.StyleVisual,
	}
	opposite := &types.UserLearningProfile{
		CompletionRate: 0, EngagementScore: 0,
		ChallengePreference: 1, CurrentDifficultyLevel: 1,
		LearningStyle: types.StyleAuditory,
	}

	if sim := profileSimilarity(a, twin); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("twin similarity = %v, want 1.0", sim)
	}
	simOpp := profileSimilarity(a, opposite)
	if simOpp >= similarUserMinScore {
		t.Errorf("opposite similarity = %v, want below min score %v", simOpp, similarUserMinScore)
	}
}

func TestContentBasedScore(t *testing.T) {
	course := &types.Course{Title: "Machine Learning Foundations", Description: "Supervised learning", Topic: "ai"}

	if got := contentBasedScore(course, nil, ""); got != 0 {
		t.Errorf("no topics score = %v, want 0", got)
	}
	if got := contentBasedScore(course, []string{"machine learning"}, ""); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("exact match score = %v, want 1.0", got)
	}
	if got := contentBasedScore(course, []string{"gardening"}, ""); got != 0 {
		t.Errorf("unrelated topic score = %v, want 0", got)
	}
}
