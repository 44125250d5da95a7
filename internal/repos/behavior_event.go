package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

// BehaviorEventFilter narrows event queries. Zero-value fields are ignored.
type BehaviorEventFilter struct {
	UserID    *uuid.UUID
	EventType string
	CourseID  *uuid.UUID
	ChapterID *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// CourseEventCount is one row of the popularity aggregation.
type CourseEventCount struct {
	CourseID uuid.UUID `gorm:"column:course_id"`
	Count    int64     `gorm:"column:count"`
}

type BehaviorEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, events []*types.BehaviorEvent) ([]*types.BehaviorEvent, error)
	List(ctx context.Context, tx *gorm.DB, filter BehaviorEventFilter) ([]*types.BehaviorEvent, error)
	GetByUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.BehaviorEvent, error)
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*types.BehaviorEvent, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	SumDurationByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error)
	CourseEventCounts(ctx context.Context, tx *gorm.DB, since time.Time, eventTypes []string) ([]CourseEventCount, error)
	UserIDsByCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, eventTypes []string) ([]uuid.UUID, error)
	CompletedCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	EngagedCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	AnonymizeByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type behaviorEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBehaviorEventRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorEventRepo {
	return &behaviorEventRepo{db: db, log: baseLog.With("repo", "BehaviorEventRepo")}
}

func (r *behaviorEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.BehaviorEvent) ([]*types.BehaviorEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return []*types.BehaviorEvent{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *behaviorEventRepo) List(ctx context.Context, tx *gorm.DB, filter BehaviorEventFilter) ([]*types.BehaviorEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.BehaviorEvent{})
	if filter.UserID != nil && *filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.CourseID != nil && *filter.CourseID != uuid.Nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if filter.ChapterID != nil && *filter.ChapterID != uuid.Nil {
		q = q.Where("chapter_id = ?", *filter.ChapterID)
	}
	if filter.StartDate != nil {
		q = q.Where("timestamp >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("timestamp <= ?", *filter.EndDate)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var results []*types.BehaviorEvent
	if err := q.Order("timestamp DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *behaviorEventRepo) GetByUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.BehaviorEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.BehaviorEvent
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ?", userID, since).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *behaviorEventRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*types.BehaviorEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.BehaviorEvent
	if userID == uuid.Nil || courseID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *behaviorEventRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if userID == uuid.Nil {
		return 0, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumDurationByUser totals duration_seconds across every event the user
// still owns. Profile refreshes read this instead of accumulating, so the
// total stays stable no matter how often a profile is recomputed.
func (r *behaviorEventRepo) SumDurationByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return 0, nil
	}
	var total float64
	if err := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(duration_seconds), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *behaviorEventRepo) CourseEventCounts(ctx context.Context, tx *gorm.DB, since time.Time, eventTypes []string) ([]CourseEventCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []CourseEventCount
	q := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Select("course_id, COUNT(*) AS count").
		Where("course_id IS NOT NULL AND timestamp >= ?", since)
	if len(eventTypes) > 0 {
		q = q.Where("event_type IN ?", eventTypes)
	}
	if err := q.Group("course_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *behaviorEventRepo) UserIDsByCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, eventTypes []string) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if courseID == uuid.Nil {
		return ids, nil
	}
	q := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Distinct("user_id").
		Where("course_id = ? AND is_anonymized = ?", courseID, false)
	if len(eventTypes) > 0 {
		q = q.Where("event_type IN ?", eventTypes)
	}
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *behaviorEventRepo) CompletedCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Distinct("course_id").
		Where("user_id = ? AND event_type = ? AND course_id IS NOT NULL", userID, types.EventCourseComplete).
		Pluck("course_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *behaviorEventRepo) EngagedCourseIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	if err := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Distinct("course_id").
		Where("user_id = ? AND course_id IS NOT NULL", userID).
		Pluck("course_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *behaviorEventRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.BehaviorEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// AnonymizeByUser scrubs user_id on every non-anonymized event for the user.
// Re-running it matches zero rows, which makes the operation idempotent.
func (r *behaviorEventRepo) AnonymizeByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return 0, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.BehaviorEvent{}).
		Where("user_id = ? AND is_anonymized = ?", userID, false).
		Updates(map[string]interface{}{
			"user_id":       uuid.Nil,
			"session_id":    "",
			"is_anonymized": true,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
