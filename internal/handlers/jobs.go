package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/services"
)

type JobsHandler struct {
	log      *logger.Logger
	dedup    services.DedupService
	search   services.SearchService
	embedder services.EmbeddingService
}

func NewJobsHandler(
	log *logger.Logger,
	dedup services.DedupService,
	search services.SearchService,
	embedder services.EmbeddingService,
) *JobsHandler {
	return &JobsHandler{
		log:      log.With("handler", "JobsHandler"),
		dedup:    dedup,
		search:   search,
		embedder: embedder,
	}
}

type dedupeRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

// POST /api/jobs/dedupe
func (h *JobsHandler) Dedupe(c *gin.Context) {
	var req dedupeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	result, err := h.dedup.Dedupe(c.Request.Context(), jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/jobs/search?user_id=&q=&top_k=&mode=
func (h *JobsHandler) Search(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	query := c.Query("q")

	opts := services.SearchOptions{}
	if raw := c.Query("top_k"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil || topK <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_top_k", err)
			return
		}
		opts.TopK = topK
	}
	switch mode := c.Query("mode"); mode {
	case "":
	case string(services.SearchModeSemantic):
		opts.Mode = services.SearchModeSemantic
	case string(services.SearchModeHybrid):
		opts.Mode = services.SearchModeHybrid
	default:
		RespondError(c, http.StatusBadRequest, "invalid_mode", nil)
		return
	}

	ids, err := h.search.Search(c.Request.Context(), userID, query, opts)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job_ids": ids})
}

// POST /api/jobs/:id/index
func (h *JobsHandler) Index(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	if err := h.embedder.EmbedAndIndex(c.Request.Context(), jobID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"indexed": true})
}
