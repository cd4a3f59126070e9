package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Dedup lifecycle of a scraped posting. Exactly one canonical record exists
// per duplicate cluster; every duplicate references it via CanonicalJobID.
const (
	DedupStatusPending   = "pending"
	DedupStatusUnique    = "unique"
	DedupStatusCanonical = "canonical"
	DedupStatusDuplicate = "duplicate"
)

type JobPosting struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	CanonicalHash   string         `gorm:"column:canonical_hash;index" json:"canonical_hash"`
	DedupStatus     string         `gorm:"column:dedup_status;index;not null;default:pending" json:"dedup_status"`
	CanonicalJobID  *uuid.UUID     `gorm:"type:uuid;index" json:"canonical_job_id,omitempty"`
	DedupConfidence float64        `gorm:"column:dedup_confidence" json:"dedup_confidence"`
	Title           string         `gorm:"not null" json:"title"`
	Company         string         `gorm:"not null" json:"company"`
	Location        string         `json:"location"`
	SalaryMin       *int           `gorm:"column:salary_min" json:"salary_min,omitempty"`
	SalaryMax       *int           `gorm:"column:salary_max" json:"salary_max,omitempty"`
	RequiredSkills  datatypes.JSON `gorm:"type:jsonb;column:required_skills" json:"required_skills"`
	RawText         string         `gorm:"column:raw_text" json:"raw_text"`
	SourceURL       string         `gorm:"column:source_url" json:"source_url"`
	PostedAt        time.Time      `gorm:"column:posted_at;index" json:"posted_at"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobPosting) TableName() string {
	return "job_posting"
}

type JobDuplicateLink struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CanonicalJobID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_duplicate_pair" json:"canonical_job_id"`
	DuplicateJobID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_duplicate_pair" json:"duplicate_job_id"`
	Confidence     float64        `gorm:"not null" json:"confidence"`
	Method         string         `gorm:"not null" json:"method"`
	MatchedFields  datatypes.JSON `gorm:"type:jsonb;column:matched_fields" json:"matched_fields"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (JobDuplicateLink) TableName() string {
	return "job_duplicate_link"
}
