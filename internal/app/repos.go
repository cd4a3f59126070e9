package app

import (
	"gorm.io/gorm"

	"github.com/skillmatch/skillmatch-backend/internal/logger"
	"github.com/skillmatch/skillmatch-backend/internal/repos"
)

type Repos struct {
	JobPosting    repos.JobPostingRepo
	DuplicateLink repos.DuplicateLinkRepo
	Compatibility repos.CompatibilityRepo
	Invalidation  repos.InvalidationRepo
	Profile       repos.ProfileRepo
	AICallLog     repos.AICallLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		JobPosting:    repos.NewJobPostingRepo(db, log),
		DuplicateLink: repos.NewDuplicateLinkRepo(db, log),
		Compatibility: repos.NewCompatibilityRepo(db, log),
		Invalidation:  repos.NewInvalidationRepo(db, log),
		Profile:       repos.NewProfileRepo(db, log),
		AICallLog:     repos.NewAICallLogRepo(db, log),
	}
}
