package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/skillmatch/skillmatch-backend/internal/clients/redis"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

const (
	compatKeyPrefix  = "cmp:"
	defaultCompatTTL = 7 * 24 * time.Hour
)

// CompatibilityService serves analyses through a two-tier cache: redis in
// front, postgres behind it, the model only on a full miss. A tier hit is
// only valid if the entry postdates the user's dirty-since watermark.
type CompatibilityService interface {
	GetOrCompute(ctx context.Context, userID, jobID uuid.UUID) (*types.CompatibilityAnalysis, error)
}

type compatibilityService struct {
	log        *logger.Logger
	cache      redisclient.Cache
	compatRepo repos.CompatibilityRepo
	invalRepo  repos.InvalidationRepo
	jobRepo    repos.JobPostingRepo
	analyzer   AnalyzerService
	tasks      TaskRunner
	ttl        time.Duration
}

func NewCompatibilityService(
	baseLog *logger.Logger,
	cache redisclient.Cache,
	compatRepo repos.CompatibilityRepo,
	invalRepo repos.InvalidationRepo,
	jobRepo repos.JobPostingRepo,
	analyzer AnalyzerService,
	tasks TaskRunner,
	ttl time.Duration,
) CompatibilityService {
	if ttl <= 0 {
		ttl = defaultCompatTTL
	}
	return &compatibilityService{
		log:        baseLog.With("service", "CompatibilityService"),
		cache:      cache,
		compatRepo: compatRepo,
		invalRepo:  invalRepo,
		jobRepo:    jobRepo,
		analyzer:   analyzer,
		tasks:      tasks,
		ttl:        ttl,
	}
}

func compatKey(userID, jobID uuid.UUID) string {
	return compatKeyPrefix + userID.String() + ":" + jobID.String()
}

func invalidationKey(userID uuid.UUID) string {
	return invalKeyPrefix + userID.String()
}

func (s *compatibilityService) GetOrCompute(ctx context.Context, userID, jobID uuid.UUID) (*types.CompatibilityAnalysis, error) {
	key := compatKey(userID, jobID)

	dirtySince, wmErr := s.dirtySince(ctx, userID)
	if wmErr != nil {
		// Without the watermark a cached entry cannot be proven fresh, so
		// both tiers are skipped rather than risking a stale serve.
		s.log.Warn("Failed to load invalidation watermark, bypassing cache tiers",
			"user_id", userID, "error", wmErr)
	} else {
		if cached := s.fromFastTier(ctx, key); cached != nil {
			if cached.CachedAt.After(dirtySince) {
				cached.Source = types.AnalysisSourceFastCache
				s.log.Debug("Compatibility cache hit", "tier", "fast", "user_id", userID, "job_id", jobID)
				return cached, nil
			}
			// Stale under the watermark; drop it so the next reader skips
			// straight to the durable tier.
			_ = s.cache.Delete(ctx, key)
		}

		durable, err := s.compatRepo.Get(ctx, nil, userID, jobID)
		if err != nil {
			return nil, err
		}
		if durable != nil && durable.CachedAt.After(dirtySince) {
			durable.Source = types.AnalysisSourceDurableCache
			s.log.Debug("Compatibility cache hit", "tier", "durable", "user_id", userID, "job_id", jobID)
			s.populateFastTier(key, durable)
			return durable, nil
		}
	}

	s.log.Debug("Compatibility cache miss", "user_id", userID, "job_id", jobID)
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}

	fresh, err := s.analyzer.Analyze(ctx, userID, job)
	if err != nil {
		return nil, err
	}

	// Write-through runs off the request path. A crash between the reply
	// and the flush costs one recomputation, never correctness.
	s.writeThrough(key, fresh)
	return fresh, nil
}

// dirtySince resolves the user's invalidation watermark. Postgres is the
// source of truth; the redis mirror can only advance the result, never lower
// it, since a failed mirror write leaves an older value behind.
func (s *compatibilityService) dirtySince(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	ts, err := s.invalRepo.GetDirtySince(ctx, nil, userID)
	if err != nil {
		return time.Time{}, err
	}
	if val, ok, gerr := s.cache.Get(ctx, invalidationKey(userID)); gerr == nil && ok {
		if mts, perr := time.Parse(time.RFC3339Nano, val); perr == nil && mts.After(ts) {
			ts = mts
		}
	}
	return ts, nil
}

func (s *compatibilityService) fromFastTier(ctx context.Context, key string) *types.CompatibilityAnalysis {
	val, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("Fast tier read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var analysis types.CompatibilityAnalysis
	if err := json.Unmarshal([]byte(val), &analysis); err != nil {
		s.log.Warn("Fast tier entry corrupt, dropping", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	return &analysis
}

func (s *compatibilityService) populateFastTier(key string, analysis *types.CompatibilityAnalysis) {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	s.tasks.Submit("compat-fast-tier-populate", func(taskCtx context.Context) {
		if err := s.cache.Set(taskCtx, key, string(payload), s.ttl); err != nil {
			s.log.Warn("Fast tier populate failed", "key", key, "error", err)
		}
	})
}

func (s *compatibilityService) writeThrough(key string, analysis *types.CompatibilityAnalysis) {
	row := *analysis
	s.tasks.Submit("compat-write-through", func(taskCtx context.Context) {
		if err := s.compatRepo.Upsert(taskCtx, nil, &row); err != nil {
			s.log.Error("Durable tier write failed", "user_id", row.UserID, "job_id", row.JobID, "error", err)
			return
		}
		payload, err := json.Marshal(&row)
		if err != nil {
			return
		}
		if err := s.cache.Set(taskCtx, key, string(payload), s.ttl); err != nil {
			s.log.Warn("Fast tier write failed", "key", key, "error", err)
		}
	})
}
