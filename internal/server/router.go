package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/skillmatch/skillmatch-backend/internal/handlers"
)

type RouterConfig struct {
	AllowOrigins         []string
	JobsHandler          *handlers.JobsHandler
	CompatibilityHandler *handlers.CompatibilityHandler
	UserHandler          *handlers.UserHandler
}

// NewRouter builds the gin engine. Authentication lives at the gateway; this
// service trusts the user_id it is handed.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/jobs/dedupe", cfg.JobsHandler.Dedupe)
		api.GET("/jobs/search", cfg.JobsHandler.Search)
		api.POST("/jobs/:id/index", cfg.JobsHandler.Index)
		api.GET("/jobs/:id/compatibility", cfg.CompatibilityHandler.Get)

		api.POST("/users/:id/invalidate-cache", cfg.UserHandler.InvalidateCache)
		api.DELETE("/users/:id/cache", cfg.UserHandler.PurgeCache)
	}

	return router
}
