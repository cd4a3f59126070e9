package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/services"
)

type CompatibilityHandler struct {
	log    *logger.Logger
	compat services.CompatibilityService
}

func NewCompatibilityHandler(log *logger.Logger, compat services.CompatibilityService) *CompatibilityHandler {
	return &CompatibilityHandler{
		log:    log.With("handler", "CompatibilityHandler"),
		compat: compat,
	}
}

// GET /api/jobs/:id/compatibility?user_id=
func (h *CompatibilityHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	analysis, err := h.compat.GetOrCompute(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"analysis": analysis})
}
