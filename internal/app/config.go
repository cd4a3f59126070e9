package app

import (
	"strings"
	"time"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/utils"
)

type Config struct {
	Addr         string
	AllowOrigins []string

	EmbeddingCacheTTL    time.Duration
	CompatibilityTTL     time.Duration
	KeywordWeight        float64
	DedupBatchSize       int
	DedupThreshold       float64
	DedupIntervalMinutes int

	RateLimitPerMinute int

	TaskWorkers   int
	TaskQueueSize int
}

func LoadConfig(log *logger.Logger) Config {
	addr := utils.GetEnv("HTTP_ADDR", ":8080", log)
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)

	embedTTLHours := utils.GetEnvAsInt("EMBEDDING_CACHE_TTL_HOURS", 30*24, log)
	compatTTLHours := utils.GetEnvAsInt("COMPATIBILITY_CACHE_TTL_HOURS", 7*24, log)
	keywordWeight := utils.GetEnvAsFloat("SEARCH_KEYWORD_WEIGHT", 0.3, log)
	dedupBatchSize := utils.GetEnvAsInt("DEDUP_BATCH_SIZE", 100, log)
	dedupThreshold := utils.GetEnvAsFloat("DEDUP_FUZZY_THRESHOLD", 0.85, log)
	dedupInterval := utils.GetEnvAsInt("DEDUP_INTERVAL_MINUTES", 15, log)
	rateLimit := utils.GetEnvAsInt("MODEL_CALLS_PER_MINUTE", 30, log)
	taskWorkers := utils.GetEnvAsInt("TASK_WORKERS", 4, log)
	taskQueue := utils.GetEnvAsInt("TASK_QUEUE_SIZE", 256, log)

	return Config{
		Addr:                 addr,
		AllowOrigins:         splitOrigins(origins),
		EmbeddingCacheTTL:    time.Duration(embedTTLHours) * time.Hour,
		CompatibilityTTL:     time.Duration(compatTTLHours) * time.Hour,
		KeywordWeight:        keywordWeight,
		DedupBatchSize:       dedupBatchSize,
		DedupThreshold:       dedupThreshold,
		DedupIntervalMinutes: dedupInterval,
		RateLimitPerMinute:   rateLimit,
		TaskWorkers:          taskWorkers,
		TaskQueueSize:        taskQueue,
	}
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
