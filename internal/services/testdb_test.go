package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

// newTestDB opens an isolated in-memory database and migrates the full
// schema. Each test gets its own database name so parallel tests never
// share state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&types.User{},
		&types.Course{},
		&types.Chapter{},
		&types.Assessment{},
		&types.BehaviorEvent{},
		&types.LearningPattern{},
		&types.UserLearningProfile{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// testDeps bundles the repos a test wires services with.
type testDeps struct {
	db             *gorm.DB
	eventRepo      repos.BehaviorEventRepo
	patternRepo    repos.LearningPatternRepo
	profileRepo    repos.LearningProfileRepo
	courseRepo     repos.CourseRepo
	chapterRepo    repos.ChapterRepo
	assessmentRepo repos.AssessmentRepo
	userRepo       repos.UserRepo
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	return &testDeps{
		db:             db,
		eventRepo:      repos.NewBehaviorEventRepo(db, log),
		patternRepo:    repos.NewLearningPatternRepo(db, log),
		profileRepo:    repos.NewLearningProfileRepo(db, log),
		courseRepo:     repos.NewCourseRepo(db, log),
		chapterRepo:    repos.NewChapterRepo(db, log),
		assessmentRepo: repos.NewAssessmentRepo(db, log),
		userRepo:       repos.NewUserRepo(db, log),
	}
}

// eventSpec keeps test fixtures compact.
type eventSpec struct {
	eventType string
	sessionID string
	courseID  *uuid.UUID
	at        time.Time
	duration  float64
	metadata  map[string]any
}

func seedEvents(t *testing.T, db *gorm.DB, userID uuid.UUID, specs []eventSpec) {
	t.Helper()
	for _, spec := range specs {
		meta := datatypes.JSON([]byte("{}"))
		if len(spec.metadata) > 0 {
			b, err := json.Marshal(spec.metadata)
			if err != nil {
				t.Fatalf("marshal metadata: %v", err)
			}
			meta = datatypes.JSON(b)
		}
		event := &types.BehaviorEvent{
			ID:              uuid.New(),
			UserID:          userID,
			SessionID:       spec.sessionID,
			EventType:       spec.eventType,
			CourseID:        spec.courseID,
			Timestamp:       spec.at,
			DurationSeconds: spec.duration,
			Metadata:        meta,
			EngagementScore: ScoreEvent(spec.eventType, spec.duration),
		}
		if err := db.Create(event).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func seedCourse(t *testing.T, db *gorm.DB, title, topic string, difficulty float64, hours float64) *types.Course {
	t.Helper()
	course := &types.Course{
		ID:              uuid.New(),
		Title:           title,
		Description:     title + " description",
		Topic:           topic,
		DifficultyLevel: difficulty,
		ContentTypes:    datatypes.JSON([]byte(`["video","text"]`)),
		EstimatedHours:  hours,
		IsPublished:     true,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course
}
