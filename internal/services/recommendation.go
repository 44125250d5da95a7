package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

// Blended-score weights. Content-based and collaborative signals carry the
// most weight; the five sum to 1.
const (
	weightContent       = 0.30
	weightCollaborative = 0.25
	weightPopularity    = 0.15
	weightDifficulty    = 0.15
	weightStyle         = 0.15
)

const (
	// candidatePoolLimit bounds the published-course scan per request.
	candidatePoolLimit = 200

	// similarUserPoolLimit bounds the profile pool the collaborative signal
	// scans; similarUserTopK of them contribute to scoring.
	similarUserPoolLimit = 100
	similarUserTopK      = 10
	similarUserMinScore  = 0.30

	popularityWindow = 30 * 24 * time.Hour
	trendingWindow   = 7 * 24 * time.Hour
)

type RecommendationService interface {
	GetCourseRecommendations(ctx context.Context, userID uuid.UUID, maxRecommendations int, topicFilter string) ([]types.CourseRecommendation, error)
	GetSimilarCourses(ctx context.Context, courseID uuid.UUID, maxRecommendations int) ([]types.CourseRecommendation, error)
	GetTrendingCourses(ctx context.Context, maxRecommendations int) ([]types.CourseRecommendation, error)
}

type recommendationService struct {
	db          *gorm.DB
	log         *logger.Logger
	courseRepo  repos.CourseRepo
	profileRepo repos.LearningProfileRepo
	eventRepo   repos.BehaviorEventRepo
}

func NewRecommendationService(db *gorm.DB, baseLog *logger.Logger, courseRepo repos.CourseRepo, profileRepo repos.LearningProfileRepo, eventRepo repos.BehaviorEventRepo) RecommendationService {
	return &recommendationService{
		db:          db,
		log:         baseLog.With("service", "RecommendationService"),
		courseRepo:  courseRepo,
		profileRepo: profileRepo,
		eventRepo:   eventRepo,
	}
}

func (s *recommendationService) GetCourseRecommendations(ctx context.Context, userID uuid.UUID, maxRecommendations int, topicFilter string) ([]types.CourseRecommendation, error) {
	if maxRecommendations <= 0 {
		maxRecommendations = 10
	}

	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		// Cold start: popularity-only ranking.
		return s.getDefaultRecommendations(ctx, maxRecommendations)
	}

	courses, err := s.courseRepo.ListPublished(ctx, nil, candidatePoolLimit)
	if err != nil {
		return nil, err
	}
	completed, err := s.eventRepo.CompletedCourseIDs(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	completedSet := map[uuid.UUID]struct{}{}
	for _, id := range completed {
		completedSet[id] = struct{}{}
	}

	popularity, err := s.popularityScores(ctx, popularityWindow)
	if err != nil {
		return nil, err
	}
	collabByCourse, err := s.collaborativeScores(ctx, userID, profile)
	if err != nil {
		s.log.Warn("collaborative scoring failed, continuing without it", "user_id", userID, "error", err)
		collabByCourse = map[uuid.UUID]float64{}
	}

	strongTopics := decodeStringList(profile.StrongTopics)

	recs := make([]types.CourseRecommendation, 0, len(courses))
	for _, course := range courses {
		if _, done := completedSet[course.ID]; done {
			continue
		}
		if topicFilter != "" && !topicMatches(course, topicFilter) {
			continue
		}

		rec := types.CourseRecommendation{
			CourseID:                course.ID,
			Title:                   course.Title,
			Description:             course.Description,
			ContentBasedScore:       contentBasedScore(course, strongTopics, topicFilter),
			CollaborativeScore:      collabByCourse[course.ID],
			PopularityScore:         popularity[course.ID],
			DifficultyMatchScore:    difficultyMatchScore(course, profile),
			LearningStyleMatchScore: styleMatchScore(course, profile.LearningStyle),
			RecommendedDifficulty:   types.DifficultyBand(profile.CurrentDifficultyLevel),
			EstimatedCompletionTime: course.EstimatedHours,
		}
		rec.RecommendationScore = types.Clamp01(
			rec.ContentBasedScore*weightContent +
				rec.CollaborativeScore*weightCollaborative +
				rec.PopularityScore*weightPopularity +
				rec.DifficultyMatchScore*weightDifficulty +
				rec.LearningStyleMatchScore*weightStyle)
		rec.Reason = recommendationReason(rec)
		recs = append(recs, rec)
	}

	sortRecommendations(recs)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs, nil
}

// getDefaultRecommendations ranks by popularity alone. Content-based and
// collaborative scores stay zero on the cold-start path.
func (s *recommendationService) getDefaultRecommendations(ctx context.Context, maxRecommendations int) ([]types.CourseRecommendation, error) {
	courses, err := s.courseRepo.ListPublished(ctx, nil, candidatePoolLimit)
	if err != nil {
		return nil, err
	}
	popularity, err := s.popularityScores(ctx, popularityWindow)
	if err != nil {
		return nil, err
	}

	recs := make([]types.CourseRecommendation, 0, len(courses))
	for _, course := range courses {
		pop := popularity[course.ID]
		recs = append(recs, types.CourseRecommendation{
			CourseID:                course.ID,
			Title:                   course.Title,
			Description:             course.Description,
			RecommendationScore:     pop,
			PopularityScore:         pop,
			Reason:                  "Popular with other learners",
			RecommendedDifficulty:   types.DifficultyBeginner,
			EstimatedCompletionTime: course.EstimatedHours,
		})
	}
	sortRecommendations(recs)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs, nil
}

// GetSimilarCourses ranks published courses by similarity to the reference.
// A missing reference yields an empty list.
func (s *recommendationService) GetSimilarCourses(ctx context.Context, courseID uuid.UUID, maxRecommendations int) ([]types.CourseRecommendation, error) {
	if maxRecommendations <= 0 {
		maxRecommendations = 10
	}
	ref, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return []types.CourseRecommendation{}, nil
	}

	courses, err := s.courseRepo.ListPublished(ctx, nil, candidatePoolLimit)
	if err != nil {
		return nil, err
	}

	recs := make([]types.CourseRecommendation, 0, len(courses))
	for _, course := range courses {
		if course.ID == ref.ID {
			continue
		}
		sim := calculateCourseSimilarity(ref, course)
		recs = append(recs, types.CourseRecommendation{
			CourseID:                course.ID,
			Title:                   course.Title,
			Description:             course.Description,
			RecommendationScore:     sim,
			ContentBasedScore:       sim,
			Reason:                  fmt.Sprintf("Similar to %s", ref.Title),
			RecommendedDifficulty:   types.DifficultyBand(course.DifficultyLevel),
			EstimatedCompletionTime: course.EstimatedHours,
		})
	}
	sortRecommendations(recs)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs, nil
}

// GetTrendingCourses ranks strictly by recent event-count popularity.
func (s *recommendationService) GetTrendingCourses(ctx context.Context, maxRecommendations int) ([]types.CourseRecommendation, error) {
	if maxRecommendations <= 0 {
		maxRecommendations = 10
	}
	popularity, err := s.popularityScores(ctx, trendingWindow)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(popularity))
	for id := range popularity {
		ids = append(ids, id)
	}
	courses, err := s.courseRepo.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	recs := make([]types.CourseRecommendation, 0, len(courses))
	for _, course := range courses {
		pop := popularity[course.ID]
		recs = append(recs, types.CourseRecommendation{
			CourseID:                course.ID,
			Title:                   course.Title,
			Description:             course.Description,
			RecommendationScore:     pop,
			PopularityScore:         pop,
			Reason:                  "Trending with learners this week",
			RecommendedDifficulty:   types.DifficultyBand(course.DifficultyLevel),
			EstimatedCompletionTime: course.EstimatedHours,
		})
	}
	sortRecommendations(recs)
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs, nil
}

// popularityScores normalizes course_start/course_complete counts inside
// the window to [0,1] by the busiest course.
func (s *recommendationService) popularityScores(ctx context.Context, window time.Duration) (map[uuid.UUID]float64, error) {
	counts, err := s.eventRepo.CourseEventCounts(ctx, nil, time.Now().UTC().Add(-window),
		[]string{types.EventCourseStart, types.EventCourseComplete})
	if err != nil {
		return nil, err
	}
	scores := map[uuid.UUID]float64{}
	var max int64
	for _, row := range counts {
		if row.Count > max {
			max = row.Count
		}
	}
	if max == 0 {
		return scores, nil
	}
	for _, row := range counts {
		scores[row.CourseID] = float64(row.Count) / float64(max)
	}
	return scores, nil
}

// collaborativeScores finds the top-K most similar users from a bounded
// candidate pool and scores each course by the similarity-weighted share of
// those users who engaged with it.
func (s *recommendationService) collaborativeScores(ctx context.Context, userID uuid.UUID, profile *types.UserLearningProfile) (map[uuid.UUID]float64, error) {
	candidates, err := s.profileRepo.ListOthers(ctx, nil, userID, similarUserPoolLimit)
	if err != nil {
		return nil, err
	}
	similar := findSimilarUsers(profile, candidates)
	if len(similar) == 0 {
		return map[uuid.UUID]float64{}, nil
	}

	var simTotal float64
	for _, su := range similar {
		simTotal += su.similarity
	}

	scores := map[uuid.UUID]float64{}
	for _, su := range similar {
		courseIDs, err := s.eventRepo.EngagedCourseIDs(ctx, nil, su.userID)
		if err != nil {
			return nil, err
		}
		for _, id := range courseIDs {
			scores[id] += su.similarity / simTotal
		}
	}
	for id := range scores {
		scores[id] = types.Clamp01(scores[id])
	}
	return scores, nil
}

type similarUser struct {
	userID     uuid.UUID
	similarity float64
}

// findSimilarUsers computes a cosine-like similarity over the numeric
// profile dimensions, with learning-style equality contributing a fixed
// bonus. Only candidates above the minimum score make the top-K cut.
func findSimilarUsers(profile *types.UserLearningProfile, candidates []*types.UserLearningProfile) []similarUser {
	similar := make([]similarUser, 0, len(candidates))
	for _, cand := range candidates {
		sim := profileSimilarity(profile, cand)
		if sim >= similarUserMinScore {
			similar = append(similar, similarUser{userID: cand.UserID, similarity: sim})
		}
	}
	sort.Slice(similar, func(i, j int) bool { return similar[i].similarity > similar[j].similarity })
	if len(similar) > similarUserTopK {
		similar = similar[:similarUserTopK]
	}
	return similar
}

func profileSimilarity(a, b *types.UserLearningProfile) float64 {
	dims := [][2]float64{
		{a.CompletionRate, b.CompletionRate},
		{a.EngagementScore, b.EngagementScore},
		{a.ChallengePreference, b.ChallengePreference},
		{a.CurrentDifficultyLevel, b.CurrentDifficultyLevel},
	}
	var closeness float64
	for _, d := range dims {
		diff := d[0] - d[1]
		if diff < 0 {
			diff = -diff
		}
		closeness += 1 - diff
	}
	score := closeness / float64(len(dims)) * 0.8
	if a.LearningStyle != types.StyleUnknown && a.LearningStyle == b.LearningStyle {
		score += 0.2
	}
	return types.Clamp01(score)
}

// contentBasedScore measures topic/keyword overlap between the course text
// and the profile's strong topics plus any explicit filter.
func contentBasedScore(course *types.Course, strongTopics []string, topicFilter string) float64 {
	topics := make([]string, 0, len(strongTopics)+1)
	topics = append(topics, strongTopics...)
	if topicFilter != "" {
		topics = append(topics, topicFilter)
	}
	if len(topics) == 0 {
		return 0
	}

	text := strings.ToLower(course.Title + " " + course.Description + " " + course.Topic)
	courseWords := tokenSet(text)

	var matched, overlap float64
	for _, topic := range topics {
		lt := strings.ToLower(strings.TrimSpace(topic))
		if lt == "" {
			continue
		}
		if strings.Contains(text, lt) {
			matched++
			continue
		}
		// Partial credit for word-level intersection with multi-word topics.
		topicWords := tokenSet(lt)
		var hit float64
		for w := range topicWords {
			if _, ok := courseWords[w]; ok {
				hit++
			}
		}
		if len(topicWords) > 0 {
			overlap += hit / float64(len(topicWords))
		}
	}
	return types.Clamp01((matched + 0.5*overlap) / float64(len(topics)))
}

// difficultyMatchScore is the closeness between course difficulty and the
// profile's effective target. Challenge appetite nudges the target up.
func difficultyMatchScore(course *types.Course, profile *types.UserLearningProfile) float64 {
	target := types.Clamp01(profile.CurrentDifficultyLevel + 0.2*(profile.ChallengePreference-0.5))
	diff := course.DifficultyLevel - target
	if diff < 0 {
		diff = -diff
	}
	return types.Clamp01(1 - diff)
}

// styleMatchScore checks whether the course carries content matching the
// learner's style. Reading scores uniformly high: most content includes
// text.
func styleMatchScore(course *types.Course, style string) float64 {
	if style == types.StyleReading || style == types.StyleUnknown || style == "" {
		return 0.8
	}
	contentTypes := decodeStringList(course.ContentTypes)
	if len(contentTypes) == 0 {
		return 0.4
	}
	for _, ct := range contentTypes {
		if matched, ok := contentTypeStyles[strings.ToLower(ct)]; ok && matched == style {
			return 1.0
		}
	}
	return 0.2
}

// recommendationReason maps the highest-contributing weighted sub-score to
// a templated sentence.
func recommendationReason(rec types.CourseRecommendation) string {
	contributions := []struct {
		value  float64
		reason string
	}{
		{rec.ContentBasedScore * weightContent, "Matches your interests"},
		{rec.CollaborativeScore * weightCollaborative, "Learners like you enjoyed this course"},
		{rec.PopularityScore * weightPopularity, "Trending with other learners"},
		{rec.DifficultyMatchScore * weightDifficulty, "Fits your current difficulty level"},
		{rec.LearningStyleMatchScore * weightStyle, "Suits the way you like to learn"},
	}
	best := contributions[0]
	for _, c := range contributions[1:] {
		if c.value > best.value {
			best = c
		}
	}
	return best.reason
}

// calculateCourseSimilarity preserves the ordering contract: identical
// titles score at least 0.8, same-topic different-level courses land in
// the moderate band, unrelated courses stay low.
func calculateCourseSimilarity(a, b *types.Course) float64 {
	topicEq := 0.0
	if a.Topic != "" && strings.EqualFold(a.Topic, b.Topic) {
		topicEq = 1.0
	}
	if strings.EqualFold(strings.TrimSpace(a.Title), strings.TrimSpace(b.Title)) {
		return types.Clamp01(0.8 + 0.2*topicEq)
	}

	titleSim := jaccard(tokenSet(strings.ToLower(a.Title)), tokenSet(strings.ToLower(b.Title)))
	descSim := jaccard(tokenSet(strings.ToLower(a.Description)), tokenSet(strings.ToLower(b.Description)))
	return types.Clamp01(0.4*titleSim + 0.2*descSim + 0.35*topicEq)
}

func tokenSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func sortRecommendations(recs []types.CourseRecommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].RecommendationScore != recs[j].RecommendationScore {
			return recs[i].RecommendationScore > recs[j].RecommendationScore
		}
		return recs[i].Title < recs[j].Title
	})
}

func topicMatches(course *types.Course, topicFilter string) bool {
	lt := strings.ToLower(topicFilter)
	return strings.Contains(strings.ToLower(course.Topic), lt) ||
		strings.Contains(strings.ToLower(course.Title), lt) ||
		strings.Contains(strings.ToLower(course.Description), lt)
}
