package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/services"
)

// Scheduler drives the periodic deduplication sweep over pending postings.
// Ingest-time dedup handles the common case; the sweep catches postings
// whose resolution was skipped or failed.
type Scheduler struct {
	cron  *cron.Cron
	log   *logger.Logger
	dedup services.DedupService
	spec  string
}

func New(baseLog *logger.Logger, dedup services.DedupService, intervalMinutes int) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	return &Scheduler{
		cron:  cron.New(),
		log:   baseLog.With("service", "Scheduler"),
		dedup: dedup,
		spec:  fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the sweep and starts the cron loop. One sweep runs
// immediately so a backlog left by a restart drains without waiting for
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("Dedup scheduler started", "spec", s.spec)

	go s.runSweep(ctx)
	return nil
}

// Stop halts the cron loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("Dedup scheduler stopped")
}

func (s *Scheduler) runSweep(ctx context.Context) {
	stats, err := s.dedup.RunBatch(ctx)
	if err != nil {
		s.log.Error("Dedup sweep failed", "error", err)
		return
	}
	if stats.Processed == 0 {
		return
	}
	s.log.Info("Dedup sweep complete",
		"processed", stats.Processed,
		"unique", stats.Unique,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
	)
}
