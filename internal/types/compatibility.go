package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tier that served a compatibility analysis. Reported to callers, never persisted.
const (
	AnalysisSourceFastCache    = "fast-cache"
	AnalysisSourceDurableCache = "durable-cache"
	AnalysisSourceFresh        = "freshly-generated"
)

// Fixed dimension keys of the compatibility score map. The analyzer always
// emits all of them, defaulting to zero when the model omits one.
var AnalysisDimensions = []string{"skills", "experience", "education", "location", "salary"}

type CompatibilityAnalysis struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_compat_user_job" json:"user_id"`
	JobID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_compat_user_job" json:"job_id"`
	OverallScore    int            `gorm:"column:overall_score;not null" json:"overall_score"`
	DimensionScores datatypes.JSON `gorm:"type:jsonb;column:dimension_scores" json:"dimension_scores"`
	Strengths       datatypes.JSON `gorm:"type:jsonb" json:"strengths"`
	Gaps            datatypes.JSON `gorm:"type:jsonb" json:"gaps"`
	RedFlags        datatypes.JSON `gorm:"type:jsonb;column:red_flags" json:"red_flags"`
	Recommendation  string         `gorm:"not null" json:"recommendation"`
	CachedAt        time.Time      `gorm:"column:cached_at;not null" json:"cached_at"`
	Source          string         `gorm:"-" json:"source"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CompatibilityAnalysis) TableName() string {
	return "compatibility_analysis"
}

// CacheInvalidation holds the per-user dirty-since watermark. Any cached
// analysis with cached_at at or before DirtySince is treated as stale.
type CacheInvalidation struct {
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	DirtySince time.Time `gorm:"column:dirty_since;not null" json:"dirty_since"`
	UpdatedAt  time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CacheInvalidation) TableName() string {
	return "cache_invalidation"
}
