package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

type JobPostingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, postings []*types.JobPosting) ([]*types.JobPosting, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobPosting, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.JobPosting, error)
	// ListPending returns oldest-first pending postings, bounded by limit.
	ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*types.JobPosting, error)
	// FindByCanonicalHash returns resolved (unique/canonical) postings of the
	// user with the given hash, oldest first.
	FindByCanonicalHash(ctx context.Context, tx *gorm.DB, userID uuid.UUID, hash string, excludeID uuid.UUID) ([]*types.JobPosting, error)
	// ListMatchCandidates returns the user's resolved postings, oldest first,
	// bounded by limit. Fuzzy matching runs against this set.
	ListMatchCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.JobPosting, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error
	// FilterOwnedIDs returns the subset of ids owned by userID.
	FilterOwnedIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, userID *uuid.UUID) (map[string]int64, error)
}

type jobPostingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobPostingRepo(db *gorm.DB, baseLog *logger.Logger) JobPostingRepo {
	return &jobPostingRepo{db: db, log: baseLog.With("repo", "JobPostingRepo")}
}

func (r *jobPostingRepo) Create(ctx context.Context, tx *gorm.DB, postings []*types.JobPosting) ([]*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(postings) == 0 {
		return []*types.JobPosting{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}

func (r *jobPostingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.JobPosting
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *jobPostingRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.JobPosting
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *jobPostingRepo) ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var results []*types.JobPosting
	if err := transaction.WithContext(ctx).
		Where("dedup_status = ?", types.DedupStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *jobPostingRepo) FindByCanonicalHash(ctx context.Context, tx *gorm.DB, userID uuid.UUID, hash string, excludeID uuid.UUID) ([]*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.JobPosting
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND canonical_hash = ? AND id <> ?", userID, hash, excludeID).
		Where("dedup_status IN ?", []string{types.DedupStatusUnique, types.DedupStatusCanonical}).
		Order("created_at asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *jobPostingRepo) ListMatchCandidates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.JobPosting, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 500
	}
	var results []*types.JobPosting
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("dedup_status IN ?", []string{types.DedupStatusUnique, types.DedupStatusCanonical}).
		Order("created_at asc").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *jobPostingRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now()
	return transaction.WithContext(ctx).
		Model(&types.JobPosting{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobPostingRepo) FilterOwnedIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	var owned []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.JobPosting{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Pluck("id", &owned).Error; err != nil {
		return nil, err
	}
	return owned, nil
}

func (r *jobPostingRepo) CountByStatus(ctx context.Context, tx *gorm.DB, userID *uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		DedupStatus string
		N           int64
	}
	var rows []row
	q := transaction.WithContext(ctx).
		Model(&types.JobPosting{}).
		Select("dedup_status, count(*) as n").
		Group("dedup_status")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.DedupStatus] = rw.N
	}
	return out, nil
}
