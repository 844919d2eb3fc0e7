package models

// OverdueSchool is a school whose last visit is missing or too old.
type OverdueSchool struct {
	ID                 int64   `db:"id" json:"id"`
	Name               string  `db:"name" json:"name"`
	LastInspectionDate *string `db:"last_inspection_date" json:"last_inspection_date,omitempty"`
}

// ComplianceBreakdown counts approved reports by rating.
type ComplianceBreakdown struct {
	Exceeds          int `db:"exceeds" json:"exceeds"`
	Meets            int `db:"meets" json:"meets"`
	NeedsImprovement int `db:"needs_improvement" json:"needs_improvement"`
}

// TrendPoint is the average score of one month.
type TrendPoint struct {
	Month string  `db:"month" json:"month"`
	Score float64 `db:"score" json:"score"`
	Count int     `db:"count" json:"count"`
}

// ActionItem is something on the dashboard the caller should look at.
type ActionItem struct {
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	ReportID   *int64 `json:"report_id,omitempty"`
	SchoolID   *int64 `json:"school_id,omitempty"`
	SchoolName string `json:"school_name"`
}

// StaleReport feeds action items built from reports.
type StaleReport struct {
	ID             int64  `db:"id"`
	SchoolID       int64  `db:"school_id"`
	SchoolName     string `db:"school_name"`
	InspectionDate string `db:"inspection_date"`
}

// Stats is the dashboard payload.
type Stats struct {
	TotalSchools     int                 `json:"total_schools"`
	OverdueVisits    int                 `json:"overdue_visits"`
	OverdueSchools   []OverdueSchool     `json:"overdue_schools"`
	Compliance       ComplianceBreakdown `json:"compliance"`
	CompliantSchools int                 `json:"compliant_schools"`
	MyReports        int                 `json:"my_reports"`
	Trend            []TrendPoint        `json:"trend"`
	ActionItems      []ActionItem        `json:"action_items"`
}
