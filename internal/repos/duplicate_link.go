package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

type DuplicateLinkRepo interface {
	// Create inserts a duplicate link. A conflict on the (canonical,
	// duplicate) pair is a silent no-op so overlapping batch runs stay
	// idempotent.
	Create(ctx context.Context, tx *gorm.DB, link *types.JobDuplicateLink) error
	ListByCanonical(ctx context.Context, tx *gorm.DB, canonicalJobID string) ([]*types.JobDuplicateLink, error)
}

type duplicateLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDuplicateLinkRepo(db *gorm.DB, baseLog *logger.Logger) DuplicateLinkRepo {
	return &duplicateLinkRepo{db: db, log: baseLog.With("repo", "DuplicateLinkRepo")}
}

func (r *duplicateLinkRepo) Create(ctx context.Context, tx *gorm.DB, link *types.JobDuplicateLink) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if link == nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canonical_job_id"}, {Name: "duplicate_job_id"}},
			DoNothing: true,
		}).
		Create(link).Error
}

func (r *duplicateLinkRepo) ListByCanonical(ctx context.Context, tx *gorm.DB, canonicalJobID string) ([]*types.JobDuplicateLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.JobDuplicateLink
	if err := transaction.WithContext(ctx).
		Where("canonical_job_id = ?", canonicalJobID).
		Order("created_at asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
