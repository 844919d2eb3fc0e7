package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SchoolStatus gates whether new reports may be filed against a school.
type SchoolStatus string

const (
	SchoolStatusActive   SchoolStatus = "active"
	SchoolStatusInactive SchoolStatus = "inactive"
)

// School is an inspected site.
type School struct {
	ID                 int64          `db:"id" json:"id"`
	Name               string         `db:"name" json:"name"`
	Location           string         `db:"location" json:"location"`
	Region             string         `db:"region" json:"region"`
	Tier               int            `db:"tier" json:"tier"`
	AcquiredDate       *string        `db:"acquired_date" json:"acquired_date,omitempty"`
	Status             SchoolStatus   `db:"status" json:"status"`
	StorageFolder      *string        `db:"storage_folder" json:"storage_folder,omitempty"`
	ClassroomConfig    types.JSONText `db:"classroom_config" json:"classroom_config,omitempty"`
	LastInspectionDate *string        `db:"last_inspection_date" json:"last_inspection_date,omitempty"`
	ReportsCount       int            `db:"reports_count" json:"reports_count"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether new reports may reference the school.
func (s *School) IsActive() bool {
	return s != nil && s.Status == SchoolStatusActive
}

// SchoolFilter captures list criteria for schools.
type SchoolFilter struct {
	Status    string
	Region    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
