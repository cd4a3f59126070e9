package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Profile tables are owned by the account service; the core reads them to
// build analyzer input and watches their mutations for cache invalidation.

type UserProfile struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Headline        string         `json:"headline"`
	Summary         string         `json:"summary"`
	Location        string         `json:"location"`
	DesiredSalary   *int           `gorm:"column:desired_salary" json:"desired_salary,omitempty"`
	RemotePreferred bool           `gorm:"column:remote_preferred" json:"remote_preferred"`
	Links           datatypes.JSON `gorm:"type:jsonb" json:"links"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}

type WorkExperience struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Company     string     `gorm:"not null" json:"company"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	StartedAt   time.Time  `gorm:"column:started_at" json:"started_at"`
	EndedAt     *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkExperience) TableName() string {
	return "work_experience"
}

type Education struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	School    string     `gorm:"not null" json:"school"`
	Degree    string     `json:"degree"`
	Field     string     `json:"field"`
	StartedAt time.Time  `gorm:"column:started_at" json:"started_at"`
	EndedAt   *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Education) TableName() string {
	return "education"
}

type UserSkill struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Level     string    `json:"level"`
	Years     int       `json:"years"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserSkill) TableName() string {
	return "user_skill"
}
