package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/types"
)

type LearningProfileRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserLearningProfile, error)
	Create(ctx context.Context, tx *gorm.DB, profile *types.UserLearningProfile) error
	Update(ctx context.Context, tx *gorm.DB, profile *types.UserLearningProfile) error
	ListOthers(ctx context.Context, tx *gorm.DB, excludeUserID uuid.UUID, limit int) ([]*types.UserLearningProfile, error)
}

type learningProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningProfileRepo(db *gorm.DB, baseLog *logger.Logger) LearningProfileRepo {
	return &learningProfileRepo{db: db, log: baseLog.With("repo", "LearningProfileRepo")}
}

// GetByUserID returns (nil, nil) when the user has no profile yet.
func (r *learningProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserLearningProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil, nil
	}
	var result types.UserLearningProfile
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

func (r *learningProfileRepo) Create(ctx context.Context, tx *gorm.DB, profile *types.UserLearningProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	profile.ClampScores()
	return transaction.WithContext(ctx).Create(profile).Error
}

func (r *learningProfileRepo) Update(ctx context.Context, tx *gorm.DB, profile *types.UserLearningProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	profile.ClampScores()
	return transaction.WithContext(ctx).Save(profile).Error
}

// ListOthers returns a bounded candidate pool of other users' profiles for
// the collaborative signal. Limit keeps the similarity scan from degrading
// into a full-table walk as the user base grows.
func (r *learningProfileRepo) ListOthers(ctx context.Context, tx *gorm.DB, excludeUserID uuid.UUID, limit int) ([]*types.UserLearningProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserLearningProfile
	q := transaction.WithContext(ctx).
		Where("user_id <> ?", excludeUserID).
		Order("last_updated DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
