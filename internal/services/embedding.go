package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	elasticclient "github.com/skillmatch/skillmatch-backend/internal/clients/elastic"
	"github.com/skillmatch/skillmatch-backend/internal/clients/openai"
	"github.com/skillmatch/skillmatch-backend/internal/clients/pinecone"
	redisclient "github.com/skillmatch/skillmatch-backend/internal/clients/redis"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

const embedKeyPrefix = "emb:"

// EmbeddingCacheKey derives the fast-tier key for a piece of text. Content
// addressed: the first 16 hex chars of the normalized text's hash.
func EmbeddingCacheKey(text string) string {
	return embedKeyPrefix + ContentHash(text)[:16]
}

// EmbeddingService produces text vectors through a dual-layer cache: a
// content-addressed redis layer in front of the model call, which itself
// sits behind the provider's short-lived cache. Posting text is immutable
// once captured, so posting embeddings are never invalidated.
type EmbeddingService interface {
	Embed(ctx context.Context, userID uuid.UUID, text string) ([]float32, error)
	// EmbedAndIndex embeds a posting and upserts it into both retrieval
	// indexes (vector and full-text).
	EmbedAndIndex(ctx context.Context, jobID uuid.UUID) error
	// RegenerateProfileEmbedding rebuilds a user's profile vector after a
	// profile mutation. Runs on the deferred path; errors are logged only.
	RegenerateProfileEmbedding(ctx context.Context, userID uuid.UUID) error
}

type embeddingService struct {
	db          *gorm.DB
	log         *logger.Logger
	cache       redisclient.Cache
	ai          openai.Client
	vectorStore pinecone.VectorStore
	fullText    elasticclient.Index
	jobRepo     repos.JobPostingRepo
	profileRepo repos.ProfileRepo
	limiter     RateLimiter
	cacheTTL    time.Duration
}

func NewEmbeddingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cache redisclient.Cache,
	ai openai.Client,
	vectorStore pinecone.VectorStore,
	fullText elasticclient.Index,
	jobRepo repos.JobPostingRepo,
	profileRepo repos.ProfileRepo,
	limiter RateLimiter,
	cacheTTL time.Duration,
) EmbeddingService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * 24 * time.Hour
	}
	return &embeddingService{
		db:          db,
		log:         baseLog.With("service", "EmbeddingService"),
		cache:       cache,
		ai:          ai,
		vectorStore: vectorStore,
		fullText:    fullText,
		jobRepo:     jobRepo,
		profileRepo: profileRepo,
		limiter:     limiter,
		cacheTTL:    cacheTTL,
	}
}

func (s *embeddingService) Embed(ctx context.Context, userID uuid.UUID, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text required: %w", pkgerrors.ErrValidation)
	}

	key := EmbeddingCacheKey(text)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("Embedding cache read failed, falling through to model", "key", key, "error", err)
	} else if ok {
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err == nil && len(vec) > 0 {
			s.log.Debug("Embedding cache hit", "key", key)
			return vec, nil
		}
		s.log.Warn("Corrupt embedding cache entry, recomputing", "key", key)
	}

	if err := s.limiter.Allow(ctx, userID); err != nil {
		return nil, err
	}

	vecs, err := s.ai.Embed(ctx, []string{NormalizeField(text)})
	if err != nil {
		if openai.IsTransient(err) {
			return nil, fmt.Errorf("embed upstream: %v: %w", err, pkgerrors.ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("embed upstream: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed upstream returned empty vector: %w", pkgerrors.ErrServiceUnavailable)
	}
	vec := vecs[0]

	// Populate the fast layer before returning. Failures here are
	// accounting losses, not request failures.
	if raw, err := json.Marshal(vec); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
			s.log.Warn("Embedding cache write failed", "key", key, "error", err)
		}
	}

	s.log.Debug("Embedding cache miss, model invoked", "key", key, "dims", len(vec))
	return vec, nil
}

func (s *embeddingService) EmbedAndIndex(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return err
	}

	vec, err := s.Embed(ctx, job.UserID, postingText(job))
	if err != nil {
		return err
	}

	doc := jobDocument(job)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.vectorStore.Upsert(gctx, userNamespace(job.UserID), []pinecone.Vector{{
			ID:     job.ID.String(),
			Values: vec,
			Metadata: map[string]any{
				"user_id":   job.UserID.String(),
				"posted_at": job.PostedAt.Unix(),
			},
		}})
	})
	g.Go(func() error {
		return s.fullText.UpsertJob(gctx, doc)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("index posting %s: %w", job.ID, err)
	}

	s.log.Info("Posting embedded and indexed", "job_id", job.ID, "user_id", job.UserID)
	return nil
}

func (s *embeddingService) RegenerateProfileEmbedding(ctx context.Context, userID uuid.UUID) error {
	profile, err := s.profileRepo.GetProfile(ctx, nil, userID)
	if err != nil {
		return err
	}
	work, err := s.profileRepo.ListWorkExperience(ctx, nil, userID)
	if err != nil {
		return err
	}
	skills, err := s.profileRepo.ListSkills(ctx, nil, userID)
	if err != nil {
		return err
	}

	text := profileText(profile, work, skills)
	vec, err := s.Embed(ctx, userID, text)
	if err != nil {
		return err
	}

	return s.vectorStore.Upsert(ctx, profileNamespace(userID), []pinecone.Vector{{
		ID:     "profile-" + userID.String(),
		Values: vec,
		Metadata: map[string]any{
			"user_id": userID.String(),
			"kind":    "profile",
		},
	}})
}

func userNamespace(userID uuid.UUID) string {
	return "jobs:" + userID.String()
}

func profileNamespace(userID uuid.UUID) string {
	return "profiles:" + userID.String()
}

func postingText(job *types.JobPosting) string {
	var b strings.Builder
	b.WriteString(job.Title)
	b.WriteString("\n")
	b.WriteString(job.Company)
	b.WriteString("\n")
	b.WriteString(job.Location)
	for _, skill := range decodeStringArray(job.RequiredSkills) {
		b.WriteString("\n")
		b.WriteString(skill)
	}
	b.WriteString("\n")
	b.WriteString(job.RawText)
	return b.String()
}

func profileText(profile *types.UserProfile, work []*types.WorkExperience, skills []*types.UserSkill) string {
	var b strings.Builder
	b.WriteString(profile.Headline)
	b.WriteString("\n")
	b.WriteString(profile.Summary)
	for _, w := range work {
		b.WriteString("\n")
		b.WriteString(w.Title)
		b.WriteString(" at ")
		b.WriteString(w.Company)
		b.WriteString(": ")
		b.WriteString(w.Description)
	}
	for _, sk := range skills {
		b.WriteString("\n")
		b.WriteString(sk.Name)
	}
	return b.String()
}

func jobDocument(job *types.JobPosting) elasticclient.JobDocument {
	return elasticclient.JobDocument{
		ID:             job.ID.String(),
		UserID:         job.UserID.String(),
		Title:          job.Title,
		Company:        job.Company,
		Location:       job.Location,
		RequiredSkills: decodeStringArray(job.RequiredSkills),
		RawText:        job.RawText,
		PostedAt:       job.PostedAt.Unix(),
	}
}

func decodeStringArray(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
