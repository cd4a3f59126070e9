package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

type CompatibilityRepo interface {
	// Get returns the durable-tier analysis for (userID, jobID), or nil when
	// none exists.
	Get(ctx context.Context, tx *gorm.DB, userID, jobID uuid.UUID) (*types.CompatibilityAnalysis, error)
	// Upsert writes through on the (user_id, job_id) unique pair. Racing
	// writers converge on the newest cached_at.
	Upsert(ctx context.Context, tx *gorm.DB, analysis *types.CompatibilityAnalysis) error
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type compatibilityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompatibilityRepo(db *gorm.DB, baseLog *logger.Logger) CompatibilityRepo {
	return &compatibilityRepo{db: db, log: baseLog.With("repo", "CompatibilityRepo")}
}

func (r *compatibilityRepo) Get(ctx context.Context, tx *gorm.DB, userID, jobID uuid.UUID) (*types.CompatibilityAnalysis, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.CompatibilityAnalysis
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *compatibilityRepo) Upsert(ctx context.Context, tx *gorm.DB, analysis *types.CompatibilityAnalysis) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if analysis == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score", "dimension_scores", "strengths", "gaps",
				"red_flags", "recommendation", "cached_at", "updated_at",
			}),
		}).
		Create(analysis).Error
}

func (r *compatibilityRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.CompatibilityAnalysis{})
	return res.RowsAffected, res.Error
}
