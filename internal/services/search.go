package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	elasticclient "github.com/skillmatch/skillmatch-backend/internal/clients/elastic"
	"github.com/skillmatch/skillmatch-backend/internal/clients/pinecone"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
)

type SearchMode string

const (
	SearchModeSemantic SearchMode = "semantic"
	SearchModeHybrid   SearchMode = "hybrid"
)

type SearchOptions struct {
	TopK int
	Mode SearchMode
}

// SearchService blends keyword and vector relevance over a user's own
// postings. Cross-user leakage is a correctness bug: both sub-searches are
// user-scoped at the index, and the merged set is re-checked against the
// durable store before ranking.
type SearchService interface {
	Search(ctx context.Context, userID uuid.UUID, query string, opts SearchOptions) ([]uuid.UUID, error)
}

type searchService struct {
	db          *gorm.DB
	log         *logger.Logger
	embedder    EmbeddingService
	vectorStore pinecone.VectorStore
	fullText    elasticclient.Index
	jobRepo     repos.JobPostingRepo
	// keywordWeight is the α in combined = α·keyword + (1-α)·semantic.
	// Long-form descriptions favor the semantic signal, so keyword stays
	// the minority share by default.
	keywordWeight float64
}

func NewSearchService(
	db *gorm.DB,
	baseLog *logger.Logger,
	embedder EmbeddingService,
	vectorStore pinecone.VectorStore,
	fullText elasticclient.Index,
	jobRepo repos.JobPostingRepo,
	keywordWeight float64,
) SearchService {
	if keywordWeight < 0 || keywordWeight > 1 {
		keywordWeight = 0.3
	}
	return &searchService{
		db:            db,
		log:           baseLog.With("service", "SearchService"),
		embedder:      embedder,
		vectorStore:   vectorStore,
		fullText:      fullText,
		jobRepo:       jobRepo,
		keywordWeight: keywordWeight,
	}
}

type scoredJob struct {
	id       uuid.UUID
	score    float64
	postedAt time.Time
}

func (s *searchService) Search(ctx context.Context, userID uuid.UUID, query string, opts SearchOptions) ([]uuid.UUID, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query required: %w", pkgerrors.ErrValidation)
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("userID required: %w", pkgerrors.ErrValidation)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 20
	}
	mode := opts.Mode
	if mode == "" {
		mode = SearchModeHybrid
	}

	var (
		semantic map[uuid.UUID]float64
		keyword  map[uuid.UUID]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores, err := s.semanticScores(gctx, userID, query, topK)
		if err != nil {
			return err
		}
		semantic = scores
		return nil
	})
	if mode == SearchModeHybrid {
		g.Go(func() error {
			scores, err := s.keywordScores(gctx, userID, query, topK)
			if err != nil {
				return err
			}
			keyword = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Each sub-search is normalized on its own; raw Lucene scores and
	// cosine similarities live on different scales.
	semantic = minMaxNormalize(semantic)
	keyword = minMaxNormalize(keyword)

	combined := make(map[uuid.UUID]float64, len(semantic)+len(keyword))
	for id, sc := range semantic {
		combined[id] = CombineScores(s.keywordWeight, keyword[id], sc)
	}
	for id, sc := range keyword {
		if _, seen := combined[id]; !seen {
			combined[id] = CombineScores(s.keywordWeight, sc, 0)
		}
	}

	ranked, err := s.rankOwned(ctx, userID, combined)
	if err != nil {
		return nil, err
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	s.log.Debug("Search complete",
		"user_id", userID,
		"mode", string(mode),
		"semantic_hits", len(semantic),
		"keyword_hits", len(keyword),
		"returned", len(ranked),
	)
	return ranked, nil
}

// CombineScores is the hybrid blend: α·keyword + (1-α)·semantic. Monotonic
// non-decreasing in both inputs for fixed α.
func CombineScores(alpha, keyword, semantic float64) float64 {
	return alpha*keyword + (1-alpha)*semantic
}

func (s *searchService) semanticScores(ctx context.Context, userID uuid.UUID, query string, topK int) (map[uuid.UUID]float64, error) {
	vec, err := s.embedder.Embed(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.vectorStore.QueryMatches(ctx, userNamespace(userID), vec, topK, map[string]any{
		"user_id": userID.String(),
	})
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]float64, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		out[id] = m.Score
	}
	return out, nil
}

func (s *searchService) keywordScores(ctx context.Context, userID uuid.UUID, query string, topK int) (map[uuid.UUID]float64, error) {
	hits, err := s.fullText.SearchJobs(ctx, userID.String(), query, topK)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]float64, len(hits))
	for _, h := range hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		out[id] = h.Score
	}
	return out, nil
}

// rankOwned drops any candidate the user does not own, then sorts by score
// descending with ties broken by most-recent posting date.
func (s *searchService) rankOwned(ctx context.Context, userID uuid.UUID, combined map[uuid.UUID]float64) ([]uuid.UUID, error) {
	if len(combined) == 0 {
		return []uuid.UUID{}, nil
	}

	ids := make([]uuid.UUID, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}
	owned, err := s.jobRepo.FilterOwnedIDs(ctx, nil, userID, ids)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[uuid.UUID]bool, len(owned))
	for _, id := range owned {
		ownedSet[id] = true
	}

	postings, err := s.jobRepo.GetByIDs(ctx, nil, owned)
	if err != nil {
		return nil, err
	}
	postedAt := make(map[uuid.UUID]time.Time, len(postings))
	for _, p := range postings {
		postedAt[p.ID] = p.PostedAt
	}

	scored := make([]scoredJob, 0, len(owned))
	for id, score := range combined {
		if !ownedSet[id] {
			continue
		}
		scored = append(scored, scoredJob{id: id, score: score, postedAt: postedAt[id]})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].postedAt.After(scored[j].postedAt)
	})

	out := make([]uuid.UUID, len(scored))
	for i, sj := range scored {
		out[i] = sj.id
	}
	return out, nil
}

// minMaxNormalize rescales a score set to [0,1]. A single-element or
// constant set maps to 1.0: presence in the result list is itself signal.
func minMaxNormalize(scores map[uuid.UUID]float64) map[uuid.UUID]float64 {
	if len(scores) == 0 {
		return map[uuid.UUID]float64{}
	}
	min, max := 0.0, 0.0
	first := true
	for _, v := range scores {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make(map[uuid.UUID]float64, len(scores))
	if max == min {
		for id := range scores {
			out[id] = 1.0
		}
		return out
	}
	for id, v := range scores {
		out[id] = (v - min) / (max - min)
	}
	return out
}
