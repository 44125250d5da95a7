package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

type LearningPatternRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningPattern, error)
	Upsert(ctx context.Context, tx *gorm.DB, pattern *types.LearningPattern) error
}

type learningPatternRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningPatternRepo(db *gorm.DB, baseLog *logger.Logger) LearningPatternRepo {
	return &learningPatternRepo{db: db, log: baseLog.With("repo", "LearningPatternRepo")}
}

// GetByUserID returns (nil, nil) when no pattern exists yet: a missing
// pattern is an expected state, not an error.
func (r *learningPatternRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningPattern, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil, nil
	}
	var result types.LearningPattern
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert overwrites the single evolving pattern row per user.
func (r *learningPatternRepo) Upsert(ctx context.Context, tx *gorm.DB, pattern *types.LearningPattern) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if pattern.ID == uuid.Nil {
		pattern.ID = uuid.New()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"pattern_type",
				"confidence_score",
				"preferred_content_types",
				"optimal_session_duration",
				"difficulty_progression_rate",
				"preferred_learning_times",
				"average_attention_span",
				"strong_topics",
				"challenging_topics",
				"data_points_count",
				"last_calculated",
				"updated_at",
			}),
		}).
		Create(pattern).Error
}
