package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// DefaultPlanPriority is applied to remediation items submitted without one.
const DefaultPlanPriority = "ongoing"

// RemediationItem is one entry of the plan of improvement.
type RemediationItem struct {
	Priority string `json:"priority"`
	Timeline string `json:"timeline"`
	Action   string `json:"action"`
}

// AISummary is the generated narrative attached to a report.
type AISummary struct {
	ReportID         int64             `db:"report_id" json:"report_id"`
	ExecutiveSummary string            `db:"executive_summary" json:"executive_summary"`
	Issues           types.JSONText    `db:"issues_json" json:"issues"`
	PlanJSON         types.JSONText    `db:"poi_json" json:"-"`
	Comparison       types.JSONText    `db:"comparison_json" json:"comparison"`
	GeneratedAt      time.Time         `db:"generated_at" json:"generated_at"`
	Plan             []RemediationItem `db:"-" json:"plan_of_improvement"`
}
