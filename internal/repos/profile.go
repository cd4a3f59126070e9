package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

// ProfileRepo reads candidate data owned by the account service. The core
// never writes these tables; mutations arrive as invalidation events.
type ProfileRepo interface {
	GetProfile(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error)
	ListWorkExperience(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.WorkExperience, error)
	ListEducation(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Education, error)
	ListSkills(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserSkill, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) GetProfile(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UserProfile
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *profileRepo) ListWorkExperience(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.WorkExperience, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.WorkExperience
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at desc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *profileRepo) ListEducation(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Education, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Education
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at desc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *profileRepo) ListSkills(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.UserSkill
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
