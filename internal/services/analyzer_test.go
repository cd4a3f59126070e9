package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

func analyzerFixture(t *testing.T, profiles *fakeProfileRepo, ai *fakeOpenAI) (AnalyzerService, *fakeCallLogRepo) {
	t.Helper()
	callLog := &fakeCallLogRepo{}
	svc := NewAnalyzerService(logger.NewNop(), ai, profiles, callLog, allowAll{}, inlineTasks{})
	return svc, callLog
}

func validGenResult() map[string]any {
	return map[string]any{
		"overall_score": float64(82),
		"dimension_scores": map[string]any{
			"skills":     float64(90),
			"experience": float64(85),
			"education":  float64(70),
			"location":   float64(60),
			"salary":     float64(75),
		},
		"strengths":      []any{"Strong Go background"},
		"gaps":           []any{"No Kubernetes exposure"},
		"red_flags":      []any{},
		"recommendation": "strong_match",
	}
}

func TestAnalyzeRejectsEmptyWorkHistory(t *testing.T) {
	ai := &fakeOpenAI{genResult: validGenResult()}
	profiles := &fakeProfileRepo{
		profile: &types.UserProfile{UserID: uuid.New(), Headline: "Engineer"},
		// no work experience
	}
	svc, callLog := analyzerFixture(t, profiles, ai)

	job := posting(uuid.New(), "Go Engineer", "Acme", "NYC", time.Now(), types.DedupStatusUnique)
	_, err := svc.Analyze(context.Background(), uuid.New(), job)
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if ai.genCalls != 0 {
		t.Fatalf("model calls = %d, want 0 (validation must precede the model call)", ai.genCalls)
	}
	if len(callLog.entries) != 0 {
		t.Fatal("no model call means no call log row")
	}
}

func TestAnalyzeProducesAnalysis(t *testing.T) {
	userID := uuid.New()
	ai := &fakeOpenAI{genResult: validGenResult()}
	profiles := &fakeProfileRepo{
		profile: &types.UserProfile{UserID: userID, Headline: "Engineer"},
		work:    []*types.WorkExperience{{UserID: userID, Company: "Acme", Title: "Engineer", StartedAt: time.Now().AddDate(-3, 0, 0)}},
		skills:  []*types.UserSkill{{UserID: userID, Name: "Go", Years: 5}},
	}
	svc, callLog := analyzerFixture(t, profiles, ai)

	job := posting(userID, "Go Engineer", "Acme", "NYC", time.Now(), types.DedupStatusUnique)
	analysis, err := svc.Analyze(context.Background(), userID, job)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.OverallScore != 82 {
		t.Fatalf("overall = %d, want 82", analysis.OverallScore)
	}
	if analysis.Source != types.AnalysisSourceFresh {
		t.Fatalf("source = %s, want freshly-generated", analysis.Source)
	}
	if analysis.CachedAt.IsZero() {
		t.Fatal("cached_at must be set on a fresh analysis")
	}

	var dims map[string]int
	if err := json.Unmarshal(analysis.DimensionScores, &dims); err != nil {
		t.Fatalf("decode dimension scores: %v", err)
	}
	for _, d := range types.AnalysisDimensions {
		if _, ok := dims[d]; !ok {
			t.Fatalf("dimension %s missing from scores", d)
		}
	}

	if len(callLog.entries) != 1 {
		t.Fatalf("call log rows = %d, want 1", len(callLog.entries))
	}
	if !callLog.entries[0].Success {
		t.Fatal("call log must record success")
	}
}

func TestAnalyzeClampsAndDefaults(t *testing.T) {
	userID := uuid.New()
	ai := &fakeOpenAI{genResult: map[string]any{
		"overall_score": float64(150),
		"dimension_scores": map[string]any{
			"skills": float64(-10),
			// remaining dimensions omitted by the model
		},
		// strengths/gaps/red_flags/recommendation all missing
	}}
	profiles := &fakeProfileRepo{
		profile: &types.UserProfile{UserID: userID},
		work:    []*types.WorkExperience{{UserID: userID, Company: "Acme", Title: "Engineer"}},
	}
	svc, _ := analyzerFixture(t, profiles, ai)

	job := posting(userID, "Go Engineer", "Acme", "NYC", time.Now(), types.DedupStatusUnique)
	analysis, err := svc.Analyze(context.Background(), userID, job)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.OverallScore != 100 {
		t.Fatalf("overall = %d, want clamped 100", analysis.OverallScore)
	}

	var dims map[string]int
	if err := json.Unmarshal(analysis.DimensionScores, &dims); err != nil {
		t.Fatalf("decode dimension scores: %v", err)
	}
	if dims["skills"] != 0 {
		t.Fatalf("skills = %d, want clamped 0", dims["skills"])
	}
	for _, d := range types.AnalysisDimensions {
		if dims[d] != 0 {
			t.Fatalf("dimension %s = %d, want 0", d, dims[d])
		}
	}
	if analysis.Recommendation == "" {
		t.Fatal("recommendation must be defaulted when missing")
	}

	var strengths []string
	if err := json.Unmarshal(analysis.Strengths, &strengths); err != nil {
		t.Fatalf("strengths must decode as an array: %v", err)
	}
}

func TestAnalyzeRecordsFailedCalls(t *testing.T) {
	userID := uuid.New()
	ai := &fakeOpenAI{genErr: errors.New("model unavailable")}
	profiles := &fakeProfileRepo{
		profile: &types.UserProfile{UserID: userID},
		work:    []*types.WorkExperience{{UserID: userID, Company: "Acme", Title: "Engineer"}},
	}
	svc, callLog := analyzerFixture(t, profiles, ai)

	job := posting(userID, "Go Engineer", "Acme", "NYC", time.Now(), types.DedupStatusUnique)
	if _, err := svc.Analyze(context.Background(), userID, job); err == nil {
		t.Fatal("expected error from failed model call")
	}
	if len(callLog.entries) != 1 {
		t.Fatalf("call log rows = %d, want 1", len(callLog.entries))
	}
	if callLog.entries[0].Success {
		t.Fatal("call log must record failure")
	}
	if callLog.entries[0].Error == "" {
		t.Fatal("call log must carry the error message")
	}
}

func TestAnalyzeToleratesWrappedMissingProfile(t *testing.T) {
	userID := uuid.New()
	ai := &fakeOpenAI{genResult: validGenResult()}
	profiles := &fakeProfileRepo{
		profileErr: fmt.Errorf("load profile: %w", pkgerrors.ErrNotFound),
		work:       []*types.WorkExperience{{UserID: userID, Company: "Acme", Title: "Engineer", StartedAt: time.Now().AddDate(-3, 0, 0)}},
	}
	svc, _ := analyzerFixture(t, profiles, ai)

	job := posting(userID, "Go Engineer", "Acme", "NYC", time.Now(), types.DedupStatusUnique)
	analysis, err := svc.Analyze(context.Background(), userID, job)
	if err != nil {
		t.Fatalf("Analyze: a missing profile row is not fatal even when wrapped: %v", err)
	}
	if analysis.OverallScore != 82 {
		t.Fatalf("overall score = %d, want 82", analysis.OverallScore)
	}
}
