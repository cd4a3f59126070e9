package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	elasticclient "github.com/skillmatch/skillmatch-backend/internal/clients/elastic"
	"github.com/skillmatch/skillmatch-backend/internal/clients/pinecone"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
	"github.com/skillmatch/skillmatch-backend/internal/types"
)

// In-memory fakes for the collaborator interfaces. State is guarded by a
// single mutex per fake; tests may exercise fakes from deferred tasks.

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	incrErr error
	sets    int
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *fakeCache) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	cur := int64(0)
	if v, ok := c.data[key]; ok {
		for _, ch := range v {
			cur = cur*10 + int64(ch-'0')
		}
	}
	cur++
	c.data[key] = itoa64(cur)
	return cur, nil
}

func (c *fakeCache) Sweep(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCache) Close() error { return nil }

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

type fakeOpenAI struct {
	mu         sync.Mutex
	embedCalls int
	genCalls   int
	embedErr   error
	genErr     error
	vector     []float32
	genResult  map[string]any
}

func (f *fakeOpenAI) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vec := f.vector
	if vec == nil {
		vec = []float32{0.1, 0.2, 0.3}
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = vec
	}
	return out, nil
}

func (f *fakeOpenAI) GenerateJSON(_ context.Context, _, _, _ string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	if f.genErr != nil {
		return nil, f.genErr
	}
	return f.genResult, nil
}

func (f *fakeOpenAI) Model() string      { return "test-model" }
func (f *fakeOpenAI) EmbedModel() string { return "test-embed-model" }

type upsertRecord struct {
	namespace string
	vectors   []pinecone.Vector
}

type fakeVectorStore struct {
	mu      sync.Mutex
	upserts []upsertRecord
	matches map[string][]pinecone.Match
	queries int
}

func (f *fakeVectorStore) Upsert(_ context.Context, namespace string, vectors []pinecone.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, upsertRecord{namespace: namespace, vectors: vectors})
	return nil
}

func (f *fakeVectorStore) QueryMatches(_ context.Context, namespace string, _ []float32, topK int, _ map[string]any) ([]pinecone.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	out := f.matches[namespace]
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	docs     []elasticclient.JobDocument
	hits     []elasticclient.Hit
	searches int
}

func (f *fakeIndex) UpsertJob(_ context.Context, doc elasticclient.JobDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeIndex) SearchJobs(_ context.Context, userID string, _ string, size int) ([]elasticclient.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	out := f.hits
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	rows []*types.JobPosting
}

func (f *fakeJobRepo) add(rows ...*types.JobPosting) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, rows...)
}

func (f *fakeJobRepo) Create(_ context.Context, _ *gorm.DB, postings []*types.JobPosting) ([]*types.JobPosting, error) {
	f.add(postings...)
	return postings, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (f *fakeJobRepo) GetByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]*types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*types.JobPosting
	for _, r := range f.rows {
		if want[r.ID] {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) ListPending(_ context.Context, _ *gorm.DB, limit int) ([]*types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobPosting
	for _, r := range f.rows {
		if r.DedupStatus == types.DedupStatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sortByCreated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobRepo) FindByCanonicalHash(_ context.Context, _ *gorm.DB, userID uuid.UUID, hash string, excludeID uuid.UUID) ([]*types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobPosting
	for _, r := range f.rows {
		if r.UserID != userID || r.ID == excludeID || r.CanonicalHash != hash {
			continue
		}
		if r.DedupStatus != types.DedupStatusUnique && r.DedupStatus != types.DedupStatusCanonical {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sortByCreated(out)
	return out, nil
}

func (f *fakeJobRepo) ListMatchCandidates(_ context.Context, _ *gorm.DB, userID uuid.UUID, limit int) ([]*types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobPosting
	for _, r := range f.rows {
		if r.UserID != userID {
			continue
		}
		if r.DedupStatus != types.DedupStatusUnique && r.DedupStatus != types.DedupStatusCanonical {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sortByCreated(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobRepo) UpdateFields(_ context.Context, _ *gorm.DB, id uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID != id {
			continue
		}
		if v, ok := updates["canonical_hash"].(string); ok {
			r.CanonicalHash = v
		}
		if v, ok := updates["dedup_status"].(string); ok {
			r.DedupStatus = v
		}
		if v, ok := updates["dedup_confidence"].(float64); ok {
			r.DedupConfidence = v
		}
		if v, ok := updates["canonical_job_id"].(uuid.UUID); ok {
			cp := v
			r.CanonicalJobID = &cp
		}
		return nil
	}
	return pkgerrors.ErrNotFound
}

func (f *fakeJobRepo) FilterOwnedIDs(_ context.Context, _ *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owned := map[uuid.UUID]bool{}
	for _, r := range f.rows {
		if r.UserID == userID {
			owned[r.ID] = true
		}
	}
	var out []uuid.UUID
	for _, id := range ids {
		if owned[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) CountByStatus(_ context.Context, _ *gorm.DB, userID *uuid.UUID) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, r := range f.rows {
		if userID != nil && r.UserID != *userID {
			continue
		}
		out[r.DedupStatus]++
	}
	return out, nil
}

func sortByCreated(rows []*types.JobPosting) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}

type fakeLinkRepo struct {
	mu        sync.Mutex
	links     []*types.JobDuplicateLink
	createErr error
}

func (f *fakeLinkRepo) Create(_ context.Context, _ *gorm.DB, link *types.JobDuplicateLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, l := range f.links {
		if l.CanonicalJobID == link.CanonicalJobID && l.DuplicateJobID == link.DuplicateJobID {
			return nil
		}
	}
	f.links = append(f.links, link)
	return nil
}

func (f *fakeLinkRepo) ListByCanonical(_ context.Context, _ *gorm.DB, canonicalJobID string) ([]*types.JobDuplicateLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobDuplicateLink
	for _, l := range f.links {
		if l.CanonicalJobID.String() == canonicalJobID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeProfileRepo struct {
	profile    *types.UserProfile
	profileErr error
	work       []*types.WorkExperience
	edu        []*types.Education
	skills     []*types.UserSkill
}

func (f *fakeProfileRepo) GetProfile(_ context.Context, _ *gorm.DB, _ uuid.UUID) (*types.UserProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.profile == nil {
		return nil, pkgerrors.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeProfileRepo) ListWorkExperience(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.WorkExperience, error) {
	return f.work, nil
}

func (f *fakeProfileRepo) ListEducation(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.Education, error) {
	return f.edu, nil
}

func (f *fakeProfileRepo) ListSkills(_ context.Context, _ *gorm.DB, _ uuid.UUID) ([]*types.UserSkill, error) {
	return f.skills, nil
}

type fakeCompatRepo struct {
	mu      sync.Mutex
	rows    map[string]*types.CompatibilityAnalysis
	upserts int
}

func newFakeCompatRepo() *fakeCompatRepo {
	return &fakeCompatRepo{rows: map[string]*types.CompatibilityAnalysis{}}
}

func compatRowKey(userID, jobID uuid.UUID) string {
	return userID.String() + "|" + jobID.String()
}

func (f *fakeCompatRepo) Get(_ context.Context, _ *gorm.DB, userID, jobID uuid.UUID) (*types.CompatibilityAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[compatRowKey(userID, jobID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeCompatRepo) Upsert(_ context.Context, _ *gorm.DB, analysis *types.CompatibilityAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	cp := *analysis
	f.rows[compatRowKey(analysis.UserID, analysis.JobID)] = &cp
	return nil
}

func (f *fakeCompatRepo) DeleteByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.rows {
		if strings.HasPrefix(k, userID.String()+"|") {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeInvalRepo struct {
	mu     sync.Mutex
	dirty  map[uuid.UUID]time.Time
	getErr error
}

func newFakeInvalRepo() *fakeInvalRepo {
	return &fakeInvalRepo{dirty: map[uuid.UUID]time.Time{}}
}

func (f *fakeInvalRepo) GetDirtySince(_ context.Context, _ *gorm.DB, userID uuid.UUID) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return time.Time{}, f.getErr
	}
	return f.dirty[userID], nil
}

func (f *fakeInvalRepo) MarkDirty(_ context.Context, _ *gorm.DB, userID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if at.After(f.dirty[userID]) {
		f.dirty[userID] = at
	}
	return nil
}

type fakeCallLogRepo struct {
	mu      sync.Mutex
	entries []*types.AICallLog
}

func (f *fakeCallLogRepo) Create(_ context.Context, _ *gorm.DB, entry *types.AICallLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

// inlineTasks runs submitted work synchronously so tests observe deferred
// side effects without sleeping.
type inlineTasks struct{}

func (inlineTasks) Submit(_ string, fn func(ctx context.Context)) { fn(context.Background()) }
func (inlineTasks) Start(context.Context)                         {}
func (inlineTasks) Drain(time.Duration)                           {}

// allowAll is a RateLimiter that never rejects.
type allowAll struct{}

func (allowAll) Allow(context.Context, uuid.UUID) error { return nil }
