package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

func TestTrigramSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "senior engineer", "senior engineer", 1.0, 1.0},
		{"identical after normalization", "Senior  Engineer", "senior engineer", 1.0, 1.0},
		{"both empty", "", "", 1.0, 1.0},
		{"one empty", "senior engineer", "", 0.0, 0.0},
		{"near match", "senior software engineer", "senior software engineer ii", 0.6, 0.999},
		{"unrelated", "senior software engineer", "pastry chef", 0.0, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrigramSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Fatalf("TrigramSimilarity(%q, %q) = %f, want within [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestTrigramSimilaritySymmetric(t *testing.T) {
	a, b := "acme corporation", "acme corp"
	if TrigramSimilarity(a, b) != TrigramSimilarity(b, a) {
		t.Fatal("similarity must be symmetric")
	}
}

func newDedupFixture(t *testing.T) (*fakeJobRepo, *fakeLinkRepo, DedupService) {
	t.Helper()
	jobRepo := &fakeJobRepo{}
	linkRepo := &fakeLinkRepo{}
	svc := NewDedupService(nil, logger.NewNop(), jobRepo, linkRepo, 0, 0)
	return jobRepo, linkRepo, svc
}

func posting(userID uuid.UUID, title, company, location string, createdAt time.Time, status string) *types.JobPosting {
	p := &types.JobPosting{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Company:     company,
		Location:    location,
		DedupStatus: status,
		CreatedAt:   createdAt,
		PostedAt:    createdAt,
	}
	p.CanonicalHash = CanonicalHash(p)
	return p
}

func TestDedupeExactHashDuplicate(t *testing.T) {
	jobRepo, linkRepo, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	older := posting(userID, "Senior Engineer", "Acme", "NYC", base, types.DedupStatusUnique)
	newer := posting(userID, "senior   ENGINEER", "acme", "nyc", base.Add(time.Minute), types.DedupStatusPending)
	jobRepo.add(older, newer)

	res, err := svc.Dedupe(context.Background(), newer.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusDuplicate {
		t.Fatalf("status = %s, want duplicate", res.Status)
	}
	if res.Confidence != 1.0 {
		t.Fatalf("confidence = %f, want 1.0", res.Confidence)
	}
	if res.Method != "exact_hash" {
		t.Fatalf("method = %s, want exact_hash", res.Method)
	}
	if res.CanonicalID == nil || *res.CanonicalID != older.ID {
		t.Fatalf("canonical id = %v, want %s", res.CanonicalID, older.ID)
	}

	// The matched record is promoted to cluster canonical.
	stored, err := jobRepo.GetByID(context.Background(), nil, older.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.DedupStatus != types.DedupStatusCanonical {
		t.Fatalf("older status = %s, want canonical", stored.DedupStatus)
	}
	if len(linkRepo.links) != 1 {
		t.Fatalf("links = %d, want 1", len(linkRepo.links))
	}
}

func TestDedupeFirstSeenWins(t *testing.T) {
	jobRepo, _, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	// The only identical record is newer than the one being resolved, so
	// no link may be formed toward it.
	pending := posting(userID, "Senior Engineer", "Acme", "NYC", base, types.DedupStatusPending)
	newer := posting(userID, "Senior Engineer", "Acme", "NYC", base.Add(time.Minute), types.DedupStatusUnique)
	jobRepo.add(pending, newer)

	res, err := svc.Dedupe(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusUnique {
		t.Fatalf("status = %s, want unique (must not link to newer record)", res.Status)
	}
}

func TestDedupeFuzzyMatch(t *testing.T) {
	jobRepo, linkRepo, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	// Same title and company, slightly different location: below exact-hash
	// equality, above the fuzzy threshold.
	older := posting(userID, "Senior Software Engineer", "Acme Corp", "New York", base, types.DedupStatusUnique)
	newer := posting(userID, "Senior Software Engineer", "Acme Corp", "New York City", base.Add(time.Minute), types.DedupStatusPending)
	jobRepo.add(older, newer)

	res, err := svc.Dedupe(context.Background(), newer.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusDuplicate {
		t.Fatalf("status = %s, want duplicate", res.Status)
	}
	if res.Method != "trigram" {
		t.Fatalf("method = %s, want trigram", res.Method)
	}
	if res.Confidence < 0.85 || res.Confidence >= 1.0 {
		t.Fatalf("confidence = %f, want in [0.85, 1.0)", res.Confidence)
	}
	if len(linkRepo.links) != 1 {
		t.Fatalf("links = %d, want 1", len(linkRepo.links))
	}
}

func TestDedupeUniqueWhenNoMatch(t *testing.T) {
	jobRepo, linkRepo, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	existing := posting(userID, "Staff Accountant", "Beta LLC", "Chicago", base, types.DedupStatusUnique)
	pending := posting(userID, "Senior Software Engineer", "Acme Corp", "New York", base.Add(time.Minute), types.DedupStatusPending)
	jobRepo.add(existing, pending)

	res, err := svc.Dedupe(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusUnique {
		t.Fatalf("status = %s, want unique", res.Status)
	}
	if len(linkRepo.links) != 0 {
		t.Fatalf("links = %d, want 0", len(linkRepo.links))
	}
}

func TestDedupeDoesNotCrossUsers(t *testing.T) {
	jobRepo, linkRepo, svc := newDedupFixture(t)
	base := time.Now().Add(-time.Hour)

	// Identical posting owned by a different user must not absorb ours.
	other := posting(uuid.New(), "Senior Engineer", "Acme", "NYC", base, types.DedupStatusUnique)
	mine := posting(uuid.New(), "Senior Engineer", "Acme", "NYC", base.Add(time.Minute), types.DedupStatusPending)
	jobRepo.add(other, mine)

	res, err := svc.Dedupe(context.Background(), mine.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusUnique {
		t.Fatalf("status = %s, want unique (dedup is per-user)", res.Status)
	}
	if len(linkRepo.links) != 0 {
		t.Fatalf("links = %d, want 0", len(linkRepo.links))
	}
}

func TestDedupeAlreadyResolved(t *testing.T) {
	jobRepo, _, svc := newDedupFixture(t)
	userID := uuid.New()
	canonicalID := uuid.New()

	resolved := posting(userID, "Senior Engineer", "Acme", "NYC", time.Now(), types.DedupStatusDuplicate)
	resolved.CanonicalJobID = &canonicalID
	resolved.DedupConfidence = 0.9
	jobRepo.add(resolved)

	res, err := svc.Dedupe(context.Background(), resolved.ID)
	if err != nil {
		t.Fatalf("Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusDuplicate {
		t.Fatalf("status = %s, want stored duplicate outcome", res.Status)
	}
	if res.CanonicalID == nil || *res.CanonicalID != canonicalID {
		t.Fatal("expected stored canonical id to be reported")
	}
	if res.Confidence != 0.9 {
		t.Fatalf("confidence = %f, want stored 0.9", res.Confidence)
	}
}

func TestRunBatchStats(t *testing.T) {
	jobRepo, _, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	older := posting(userID, "Senior Engineer", "Acme", "NYC", base, types.DedupStatusUnique)
	dup := posting(userID, "Senior Engineer", "Acme", "NYC", base.Add(time.Minute), types.DedupStatusPending)
	unique := posting(userID, "Pastry Chef", "Bakery Co", "Lyon", base.Add(2*time.Minute), types.DedupStatusPending)
	jobRepo.add(older, dup, unique)

	stats, err := svc.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if stats.Processed != 2 {
		t.Fatalf("processed = %d, want 2", stats.Processed)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", stats.Duplicates)
	}
	if stats.Unique != 1 {
		t.Fatalf("unique = %d, want 1", stats.Unique)
	}
	if stats.Failed != 0 {
		t.Fatalf("failed = %d, want 0", stats.Failed)
	}
}

func TestDedupeLinkFailureLeavesClusterConsistent(t *testing.T) {
	jobRepo, linkRepo, svc := newDedupFixture(t)
	userID := uuid.New()
	base := time.Now().Add(-time.Hour)

	older := posting(userID, "Senior Engineer", "Acme", "NYC", base, types.DedupStatusUnique)
	newer := posting(userID, "senior ENGINEER", "acme", "nyc", base.Add(time.Minute), types.DedupStatusPending)
	jobRepo.add(older, newer)

	linkRepo.createErr = errors.New("insert refused")
	if _, err := svc.Dedupe(context.Background(), newer.ID); err == nil {
		t.Fatal("expected error when the link insert fails")
	}

	target, err := jobRepo.GetByID(context.Background(), nil, older.ID)
	if err != nil {
		t.Fatalf("GetByID target: %v", err)
	}
	if target.DedupStatus != types.DedupStatusUnique {
		t.Fatalf("target status = %s, must not be promoted without a recorded link", target.DedupStatus)
	}
	dup, err := jobRepo.GetByID(context.Background(), nil, newer.ID)
	if err != nil {
		t.Fatalf("GetByID duplicate: %v", err)
	}
	if dup.DedupStatus != types.DedupStatusPending {
		t.Fatalf("duplicate status = %s, must stay pending for the next sweep", dup.DedupStatus)
	}

	// The next sweep retries cleanly once the insert goes through.
	linkRepo.createErr = nil
	res, err := svc.Dedupe(context.Background(), newer.ID)
	if err != nil {
		t.Fatalf("retry Dedupe: %v", err)
	}
	if res.Status != types.DedupStatusDuplicate {
		t.Fatalf("retry status = %s, want duplicate", res.Status)
	}
	target, _ = jobRepo.GetByID(context.Background(), nil, older.ID)
	if target.DedupStatus != types.DedupStatusCanonical {
		t.Fatalf("target status = %s, want canonical after successful link", target.DedupStatus)
	}
}
