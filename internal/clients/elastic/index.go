package elastic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olivere/elastic/v7"
	"gopkg.in/yaml.v3"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
)

const defaultIndexName = "job_posting_index"

// JobDocument is the full-text projection of a posting.
type JobDocument struct {
	ID             string   `json:"id"`
	UserID         string   `json:"user_id"`
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	Location       string   `json:"location"`
	RequiredSkills []string `json:"required_skills"`
	RawText        string   `json:"raw_text"`
	PostedAt       int64    `json:"posted_at"`
}

// Hit is a keyword-relevance match. Scores are raw Lucene scores; the ranker
// normalizes per sub-search.
type Hit struct {
	ID    string
	Score float64
}

// Index is the keyword retrieval adapter. Every search is hard-filtered by
// user_id so keyword results can never cross user boundaries.
type Index interface {
	UpsertJob(ctx context.Context, doc JobDocument) error
	SearchJobs(ctx context.Context, userID string, query string, size int) ([]Hit, error)
}

// FieldBoosts controls per-field keyword relevance weighting. Loaded from
// SEARCH_BOOSTS_FILE (yaml) when set, defaults otherwise.
type FieldBoosts struct {
	Title          float64 `yaml:"title"`
	Company        float64 `yaml:"company"`
	Location       float64 `yaml:"location"`
	RequiredSkills float64 `yaml:"required_skills"`
	RawText        float64 `yaml:"raw_text"`
}

func defaultBoosts() FieldBoosts {
	return FieldBoosts{
		Title:          4,
		Company:        2,
		Location:       1,
		RequiredSkills: 3,
		RawText:        1,
	}
}

func loadBoosts(log *logger.Logger) FieldBoosts {
	boosts := defaultBoosts()
	path := strings.TrimSpace(os.Getenv("SEARCH_BOOSTS_FILE"))
	if path == "" {
		return boosts
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Could not read search boosts file, using defaults", "path", path, "error", err)
		return boosts
	}
	if err := yaml.Unmarshal(raw, &boosts); err != nil {
		log.Warn("Could not parse search boosts file, using defaults", "path", path, "error", err)
		return defaultBoosts()
	}
	return boosts
}

type index struct {
	log    *logger.Logger
	client *elastic.Client
	name   string
	boosts FieldBoosts
}

func NewIndex(log *logger.Logger) (Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	url := strings.TrimSpace(os.Getenv("ELASTIC_URL"))
	if url == "" {
		url = "http://localhost:9200"
	}
	name := strings.TrimSpace(os.Getenv("ELASTIC_JOB_INDEX"))
	if name == "" {
		name = defaultIndexName
	}

	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}

	return &index{
		log:    log.With("service", "ElasticJobIndex"),
		client: client,
		name:   name,
		boosts: loadBoosts(log),
	}, nil
}

func (i *index) UpsertJob(ctx context.Context, doc JobDocument) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("document id required")
	}
	_, err := i.client.Index().
		Index(i.name).
		Id(doc.ID).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic upsert %s: %w", doc.ID, err)
	}
	return nil
}

func (i *index) SearchJobs(ctx context.Context, userID string, query string, size int) ([]Hit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userID required")
	}
	if size <= 0 {
		size = 20
	}

	boolQuery := elastic.NewBoolQuery().
		Filter(elastic.NewTermQuery("user_id", userID)).
		Must(elastic.NewBoolQuery().Should(
			elastic.NewMatchQuery("title", query).Boost(i.boosts.Title),
			elastic.NewMatchQuery("company", query).Boost(i.boosts.Company),
			elastic.NewMatchQuery("location", query).Boost(i.boosts.Location),
			elastic.NewMatchQuery("required_skills", query).Boost(i.boosts.RequiredSkills),
			elastic.NewMatchQuery("raw_text", query).Boost(i.boosts.RawText),
		))

	resp, err := i.client.Search(i.name).
		Size(size).
		Query(boolQuery).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("elastic search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		score := 0.0
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, Hit{ID: h.Id, Score: score})
	}
	return hits, nil
}
