package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

// Field weights for the combined fuzzy score. Title carries the most signal;
// location is noisy (remote vs city spellings).
const (
	titleWeight    = 0.5
	companyWeight  = 0.3
	locationWeight = 0.2
)

const (
	dedupMethodExactHash = "exact_hash"
	dedupMethodTrigram   = "trigram"

	defaultBatchSize       = 100
	defaultMatchCandidates = 500
	defaultFuzzyThreshold  = 0.85
)

type DedupResult struct {
	Status      string     `json:"status"`
	CanonicalID *uuid.UUID `json:"canonical_id,omitempty"`
	Confidence  float64    `json:"confidence"`
	Method      string     `json:"method,omitempty"`
}

type DedupBatchStats struct {
	Processed  int `json:"processed"`
	Unique     int `json:"unique"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// DedupService resolves pending postings into unique/canonical/duplicate.
// Batches are serialized against each other; a second RunBatch blocks until
// the first finishes so overlapping runs cannot double-link.
type DedupService interface {
	Dedupe(ctx context.Context, jobID uuid.UUID) (*DedupResult, error)
	RunBatch(ctx context.Context) (*DedupBatchStats, error)
}

type dedupService struct {
	db        *gorm.DB
	log       *logger.Logger
	jobRepo   repos.JobPostingRepo
	linkRepo  repos.DuplicateLinkRepo
	batchSize int
	threshold float64

	batchMu sync.Mutex
}

func NewDedupService(db *gorm.DB, baseLog *logger.Logger, jobRepo repos.JobPostingRepo, linkRepo repos.DuplicateLinkRepo, batchSize int, threshold float64) DedupService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if threshold <= 0 || threshold > 1 {
		threshold = defaultFuzzyThreshold
	}
	return &dedupService{
		db:        db,
		log:       baseLog.With("service", "DedupService"),
		jobRepo:   jobRepo,
		linkRepo:  linkRepo,
		batchSize: batchSize,
		threshold: threshold,
	}
}

func (s *dedupService) Dedupe(ctx context.Context, jobID uuid.UUID) (*DedupResult, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}

	// Already resolved: report the stored outcome, don't re-link.
	if job.DedupStatus != types.DedupStatusPending {
		return &DedupResult{
			Status:      job.DedupStatus,
			CanonicalID: job.CanonicalJobID,
			Confidence:  job.DedupConfidence,
		}, nil
	}

	hash := CanonicalHash(job)
	if job.CanonicalHash != hash {
		if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, map[string]any{"canonical_hash": hash}); err != nil {
			return nil, err
		}
		job.CanonicalHash = hash
	}

	// Exact duplicates first: identical hash means identical normalized
	// title+company+location+salary bucket.
	exact, err := s.jobRepo.FindByCanonicalHash(ctx, nil, job.UserID, hash, job.ID)
	if err != nil {
		return nil, err
	}
	for _, cand := range exact {
		if cand.CreatedAt.After(job.CreatedAt) {
			continue // first-seen-wins: only link to older records
		}
		return s.linkDuplicate(ctx, job, cand, 1.0, dedupMethodExactHash, []string{"title", "company", "location", "salary_bucket"})
	}

	// Fuzzy pass over the user's resolved corpus, oldest first.
	candidates, err := s.jobRepo.ListMatchCandidates(ctx, nil, job.UserID, defaultMatchCandidates)
	if err != nil {
		return nil, err
	}

	var (
		best       *types.JobPosting
		bestScore  float64
		bestFields []string
	)
	for _, cand := range candidates {
		if cand.ID == job.ID || cand.CreatedAt.After(job.CreatedAt) {
			continue
		}
		score, matched := fieldSimilarity(job, cand)
		if score > bestScore {
			best, bestScore, bestFields = cand, score, matched
		}
	}

	if best != nil && bestScore >= s.threshold {
		return s.linkDuplicate(ctx, job, best, bestScore, dedupMethodTrigram, bestFields)
	}

	if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, map[string]any{
		"dedup_status":     types.DedupStatusUnique,
		"dedup_confidence": bestScore,
	}); err != nil {
		return nil, err
	}
	return &DedupResult{Status: types.DedupStatusUnique, Confidence: bestScore}, nil
}

func (s *dedupService) linkDuplicate(ctx context.Context, job, target *types.JobPosting, confidence float64, method string, matchedFields []string) (*DedupResult, error) {
	// Link first, promote after: a failure between the two leaves a link
	// behind and the job still pending, which the next sweep retries
	// (link creation is idempotent). The reverse order could strand a
	// canonical with no registered duplicates.
	fields, _ := json.Marshal(matchedFields)
	if err := s.linkRepo.Create(ctx, nil, &types.JobDuplicateLink{
		CanonicalJobID: target.ID,
		DuplicateJobID: job.ID,
		Confidence:     confidence,
		Method:         method,
		MatchedFields:  datatypes.JSON(fields),
	}); err != nil {
		return nil, err
	}

	if target.DedupStatus == types.DedupStatusUnique {
		if err := s.jobRepo.UpdateFields(ctx, nil, target.ID, map[string]any{
			"dedup_status": types.DedupStatusCanonical,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.jobRepo.UpdateFields(ctx, nil, job.ID, map[string]any{
		"dedup_status":     types.DedupStatusDuplicate,
		"canonical_job_id": target.ID,
		"dedup_confidence": confidence,
	}); err != nil {
		return nil, err
	}

	s.log.Info("Posting linked as duplicate",
		"job_id", job.ID,
		"canonical_id", target.ID,
		"confidence", confidence,
		"method", method,
	)
	return &DedupResult{
		Status:      types.DedupStatusDuplicate,
		CanonicalID: &target.ID,
		Confidence:  confidence,
		Method:      method,
	}, nil
}

func (s *dedupService) RunBatch(ctx context.Context) (*DedupBatchStats, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	start := time.Now()
	pending, err := s.jobRepo.ListPending(ctx, nil, s.batchSize)
	if err != nil {
		return nil, err
	}

	stats := &DedupBatchStats{}
	for _, job := range pending {
		res, err := s.Dedupe(ctx, job.ID)
		if err != nil {
			// Record stays pending for the next pass; one bad posting
			// must not sink the batch.
			stats.Failed++
			s.log.Warn("Dedupe failed, posting left pending", "job_id", job.ID, "error", err)
			continue
		}
		stats.Processed++
		if res.Status == types.DedupStatusDuplicate {
			stats.Duplicates++
		} else {
			stats.Unique++
		}
	}

	s.log.Info("Dedup batch complete",
		"processed", stats.Processed,
		"unique", stats.Unique,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"elapsed", time.Since(start).String(),
	)
	return stats, nil
}

// fieldSimilarity combines per-field trigram similarity into one score and
// reports which fields cleared the threshold on their own.
func fieldSimilarity(a, b *types.JobPosting) (float64, []string) {
	titleSim := TrigramSimilarity(a.Title, b.Title)
	companySim := TrigramSimilarity(a.Company, b.Company)
	locationSim := TrigramSimilarity(a.Location, b.Location)

	combined := titleWeight*titleSim + companyWeight*companySim + locationWeight*locationSim

	var matched []string
	if titleSim >= defaultFuzzyThreshold {
		matched = append(matched, "title")
	}
	if companySim >= defaultFuzzyThreshold {
		matched = append(matched, "company")
	}
	if locationSim >= defaultFuzzyThreshold {
		matched = append(matched, "location")
	}
	return combined, matched
}

// TrigramSimilarity is Jaccard similarity over padded 3-grams of the
// normalized strings, pg_trgm style. Equal normalized strings score 1.0.
func TrigramSimilarity(a, b string) float64 {
	na, nb := NormalizeField(a), NormalizeField(b)
	if na == nb {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}

	setA := trigramSet(na)
	setB := trigramSet(nb)

	inter := 0
	for g := range setA {
		if setB[g] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

func trigramSet(s string) map[string]bool {
	// Two leading and one trailing pad, matching pg_trgm, so short strings
	// still produce enough grams to compare.
	padded := "  " + s + " "
	runes := []rune(padded)
	out := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = true
	}
	return out
}
