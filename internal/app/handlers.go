package app

import (
	"github.com/skillmatch/skillmatch-backend/internal/handlers"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/server"
)

type Handlers struct {
	Jobs          *handlers.JobsHandler
	Compatibility *handlers.CompatibilityHandler
	User          *handlers.UserHandler
}

func wireHandlers(log *logger.Logger, svcs Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Jobs:          handlers.NewJobsHandler(log, svcs.Dedup, svcs.Search, svcs.Embedding),
		Compatibility: handlers.NewCompatibilityHandler(log, svcs.Compatibility),
		User:          handlers.NewUserHandler(log, svcs.Invalidation),
	}
}

func wireRouter(cfg Config, h Handlers) server.RouterConfig {
	return server.RouterConfig{
		AllowOrigins:         cfg.AllowOrigins,
		JobsHandler:          h.Jobs,
		CompatibilityHandler: h.Compatibility,
		UserHandler:          h.User,
	}
}
