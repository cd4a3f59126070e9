package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/skillmatch/skillmatch-backend/internal/clients/openai"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

const callTypeCompatibility = "compatibility_analysis"

// AnalyzerService produces a compatibility analysis by calling the model.
// It never consults caches; CompatibilityService owns that layering.
type AnalyzerService interface {
	Analyze(ctx context.Context, userID uuid.UUID, job *types.JobPosting) (*types.CompatibilityAnalysis, error)
}

type analyzerService struct {
	log         *logger.Logger
	ai          openai.Client
	profileRepo repos.ProfileRepo
	callLogRepo repos.AICallLogRepo
	limiter     RateLimiter
	tasks       TaskRunner
}

func NewAnalyzerService(
	baseLog *logger.Logger,
	ai openai.Client,
	profileRepo repos.ProfileRepo,
	callLogRepo repos.AICallLogRepo,
	limiter RateLimiter,
	tasks TaskRunner,
) AnalyzerService {
	return &analyzerService{
		log:         baseLog.With("service", "AnalyzerService"),
		ai:          ai,
		profileRepo: profileRepo,
		callLogRepo: callLogRepo,
		limiter:     limiter,
		tasks:       tasks,
	}
}

func (s *analyzerService) Analyze(ctx context.Context, userID uuid.UUID, job *types.JobPosting) (*types.CompatibilityAnalysis, error) {
	if job == nil {
		return nil, fmt.Errorf("job required: %w", pkgerrors.ErrValidation)
	}

	bundle, err := s.loadBundle(ctx, userID)
	if err != nil {
		return nil, err
	}
	// An empty work history cannot be scored against experience-weighted
	// dimensions; reject before spending a model call.
	if len(bundle.Experience) == 0 {
		return nil, fmt.Errorf("profile has no work experience: %w", pkgerrors.ErrValidation)
	}

	if err := s.limiter.Allow(ctx, userID); err != nil {
		return nil, err
	}

	prompt := buildAnalyzerPrompt(bundle, job)

	started := time.Now()
	raw, err := s.ai.GenerateJSON(ctx, analyzerSystemPrompt, prompt, "compatibility_analysis", analyzerSchema())
	latency := time.Since(started).Milliseconds()
	s.recordCall(userID, job.ID, latency, err)
	if err != nil {
		if openai.IsTransient(err) {
			return nil, fmt.Errorf("compatibility analysis: %w", pkgerrors.ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("compatibility analysis: %w", err)
	}

	analysis := parseAnalysis(raw, userID, job.ID)
	s.log.Info("Analysis generated",
		"user_id", userID,
		"job_id", job.ID,
		"overall_score", analysis.OverallScore,
		"latency_ms", latency,
	)
	return analysis, nil
}

func (s *analyzerService) loadBundle(ctx context.Context, userID uuid.UUID) (*profileBundle, error) {
	profile, err := s.profileRepo.GetProfile(ctx, nil, userID)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}
	experience, err := s.profileRepo.ListWorkExperience(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	education, err := s.profileRepo.ListEducation(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	skills, err := s.profileRepo.ListSkills(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	return &profileBundle{
		Profile:    profile,
		Experience: experience,
		Education:  education,
		Skills:     skills,
	}, nil
}

func (s *analyzerService) recordCall(userID, jobID uuid.UUID, latencyMS int64, callErr error) {
	entry := &types.AICallLog{
		UserID:    &userID,
		JobID:     &jobID,
		CallType:  callTypeCompatibility,
		Model:     s.ai.Model(),
		Success:   callErr == nil,
		LatencyMS: latencyMS,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	s.tasks.Submit("record-ai-call", func(taskCtx context.Context) {
		if err := s.callLogRepo.Create(taskCtx, nil, entry); err != nil {
			s.log.Warn("Failed to record AI call", "error", err)
		}
	})
}

// parseAnalysis maps the structured output onto the persisted shape. Out of
// range or missing values degrade to defaults rather than failing the call.
func parseAnalysis(raw map[string]any, userID, jobID uuid.UUID) *types.CompatibilityAnalysis {
	dims := make(map[string]int, len(types.AnalysisDimensions))
	if m, ok := raw["dimension_scores"].(map[string]any); ok {
		for _, d := range types.AnalysisDimensions {
			dims[d] = clampScore(asInt(m[d]))
		}
	} else {
		for _, d := range types.AnalysisDimensions {
			dims[d] = 0
		}
	}

	recommendation, _ := raw["recommendation"].(string)
	if recommendation == "" {
		recommendation = "worth_applying"
	}

	return &types.CompatibilityAnalysis{
		UserID:          userID,
		JobID:           jobID,
		OverallScore:    clampScore(asInt(raw["overall_score"])),
		DimensionScores: datatypes.JSON(mustJSON(dims)),
		Strengths:       datatypes.JSON(mustJSON(asStringSlice(raw["strengths"]))),
		Gaps:            datatypes.JSON(mustJSON(asStringSlice(raw["gaps"]))),
		RedFlags:        datatypes.JSON(mustJSON(asStringSlice(raw["red_flags"]))),
		Recommendation:  recommendation,
		CachedAt:        time.Now().UTC(),
		Source:          types.AnalysisSourceFresh,
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func asStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
