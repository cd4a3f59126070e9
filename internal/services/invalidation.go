package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/skillmatch/skillmatch-backend/internal/clients/redis"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
)

const (
	invalKeyPrefix = "inv:"
	// Mirror entries outlive the longest analysis TTL so a watermark is
	// never evicted before every entry it invalidates has expired.
	invalMirrorTTL = 30 * 24 * time.Hour
)

// InvalidationService advances a user's dirty-since watermark when their
// profile changes. Cached analyses are invalidated lazily: nothing is
// deleted here, readers compare timestamps against the watermark.
type InvalidationService interface {
	// OnProfileMutation records the mutation instant and schedules a
	// profile embedding rebuild.
	OnProfileMutation(ctx context.Context, userID uuid.UUID) error

	// PurgeUser drops every cached analysis for a user, both tiers.
	// Used for account deletion, not for routine invalidation.
	PurgeUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type invalidationService struct {
	log        *logger.Logger
	cache      redisclient.Cache
	invalRepo  repos.InvalidationRepo
	compatRepo repos.CompatibilityRepo
	embedder   EmbeddingService
	tasks      TaskRunner
}

func NewInvalidationService(
	baseLog *logger.Logger,
	cache redisclient.Cache,
	invalRepo repos.InvalidationRepo,
	compatRepo repos.CompatibilityRepo,
	embedder EmbeddingService,
	tasks TaskRunner,
) InvalidationService {
	return &invalidationService{
		log:        baseLog.With("service", "InvalidationService"),
		cache:      cache,
		invalRepo:  invalRepo,
		compatRepo: compatRepo,
		embedder:   embedder,
		tasks:      tasks,
	}
}

func (s *invalidationService) OnProfileMutation(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()

	// Postgres is the source of truth for the watermark; the redis mirror
	// is an optimization and may lag or be missing.
	if err := s.invalRepo.MarkDirty(ctx, nil, userID, now); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, invalidationKey(userID), now.Format(time.RFC3339Nano), invalMirrorTTL); err != nil {
		s.log.Warn("Failed to mirror watermark to redis", "user_id", userID, "error", err)
	}

	s.log.Info("User cache invalidated", "user_id", userID, "dirty_since", now)

	s.tasks.Submit("profile-embedding-regenerate", func(taskCtx context.Context) {
		if err := s.embedder.RegenerateProfileEmbedding(taskCtx, userID); err != nil {
			s.log.Warn("Profile embedding regeneration failed", "user_id", userID, "error", err)
		}
	})
	return nil
}

func (s *invalidationService) PurgeUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	deleted, err := s.compatRepo.DeleteByUser(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	if _, err := s.cache.Sweep(ctx, compatKeyPrefix+userID.String()+":"); err != nil {
		s.log.Warn("Fast tier sweep failed", "user_id", userID, "error", err)
	}
	if err := s.cache.Delete(ctx, invalidationKey(userID)); err != nil {
		s.log.Warn("Failed to drop watermark mirror", "user_id", userID, "error", err)
	}
	s.log.Info("User analyses purged", "user_id", userID, "deleted", deleted)
	return deleted, nil
}
