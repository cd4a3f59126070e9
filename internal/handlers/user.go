package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/services"
)

type UserHandler struct {
	log   *logger.Logger
	inval services.InvalidationService
}

func NewUserHandler(log *logger.Logger, inval services.InvalidationService) *UserHandler {
	return &UserHandler{
		log:   log.With("handler", "UserHandler"),
		inval: inval,
	}
}

// POST /api/users/:id/invalidate-cache
// Called by the profile service after any profile mutation.
func (h *UserHandler) InvalidateCache(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	if err := h.inval.OnProfileMutation(c.Request.Context(), userID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"invalidated": true})
}

// DELETE /api/users/:id/cache
func (h *UserHandler) PurgeCache(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
		return
	}
	deleted, err := h.inval.PurgeUser(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": deleted})
}
