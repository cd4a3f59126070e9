package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

type InvalidationRepo interface {
	// GetDirtySince returns the user's watermark, zero time when none exists.
	GetDirtySince(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (time.Time, error)
	// MarkDirty moves the watermark forward. Never moves it backward, so
	// racing invalidations keep the strictest bound.
	MarkDirty(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
}

type invalidationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvalidationRepo(db *gorm.DB, baseLog *logger.Logger) InvalidationRepo {
	return &invalidationRepo{db: db, log: baseLog.With("repo", "InvalidationRepo")}
}

func (r *invalidationRepo) GetDirtySince(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (time.Time, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.CacheInvalidation
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return result.DirtySince, nil
}

func (r *invalidationRepo) MarkDirty(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	row := &types.CacheInvalidation{
		UserID:     userID,
		DirtySince: at,
		UpdatedAt:  time.Now(),
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"dirty_since": gorm.Expr("GREATEST(cache_invalidation.dirty_since, excluded.dirty_since)"),
				"updated_at":  time.Now(),
			}),
		}).
		Create(row).Error
}
