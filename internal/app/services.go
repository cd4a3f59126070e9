package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/scheduler"
	"github.com/skillmatch/skillmatch-backend/internal/services"
)

type Services struct {
	Tasks         services.TaskRunner
	RateLimiter   services.RateLimiter
	Embedding     services.EmbeddingService
	Dedup         services.DedupService
	Search        services.SearchService
	Analyzer      services.AnalyzerService
	Compatibility services.CompatibilityService
	Invalidation  services.InvalidationService
	Scheduler     *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients) Services {
	log.Info("Wiring services...")

	tasks := services.NewTaskRunner(log, cfg.TaskWorkers, cfg.TaskQueueSize)

	limiter := services.NewRateLimiter(log, clients.Cache, cfg.RateLimitPerMinute, time.Minute)

	embedding := services.NewEmbeddingService(
		db, log,
		clients.Cache,
		clients.OpenAI,
		clients.VectorStore,
		clients.FullText,
		repos.JobPosting,
		repos.Profile,
		limiter,
		cfg.EmbeddingCacheTTL,
	)

	dedup := services.NewDedupService(db, log, repos.JobPosting, repos.DuplicateLink, cfg.DedupBatchSize, cfg.DedupThreshold)

	search := services.NewSearchService(
		db, log,
		embedding,
		clients.VectorStore,
		clients.FullText,
		repos.JobPosting,
		cfg.KeywordWeight,
	)

	analyzer := services.NewAnalyzerService(log, clients.OpenAI, repos.Profile, repos.AICallLog, limiter, tasks)

	compatibility := services.NewCompatibilityService(
		log,
		clients.Cache,
		repos.Compatibility,
		repos.Invalidation,
		repos.JobPosting,
		analyzer,
		tasks,
		cfg.CompatibilityTTL,
	)

	invalidation := services.NewInvalidationService(
		log,
		clients.Cache,
		repos.Invalidation,
		repos.Compatibility,
		embedding,
		tasks,
	)

	sched := scheduler.New(log, dedup, cfg.DedupIntervalMinutes)

	return Services{
		Tasks:         tasks,
		RateLimiter:   limiter,
		Embedding:     embedding,
		Dedup:         dedup,
		Search:        search,
		Analyzer:      analyzer,
		Compatibility: compatibility,
		Invalidation:  invalidation,
		Scheduler:     sched,
	}
}
