package models

import "time"

// ReportType is the inspection category.
type ReportType string

const (
	ReportTypeTier1          ReportType = "tier1"
	ReportTypeTier1Tier2     ReportType = "tier1_tier2"
	ReportTypeNewAcquisition ReportType = "new_acquisition"
)

var reportTypeLabels = map[ReportType]string{
	ReportTypeTier1:          "Tier 1",
	ReportTypeTier1Tier2:     "Tier 1 + Tier 2",
	ReportTypeNewAcquisition: "New Acquisition",
}

// Valid reports whether the type is known.
func (t ReportType) Valid() bool {
	_, ok := reportTypeLabels[t]
	return ok
}

// Label is the human readable name.
func (t ReportType) Label() string {
	return reportTypeLabels[t]
}

// Tier maps the type onto the checklist depth clients render.
func (t ReportType) Tier() int {
	switch t {
	case ReportTypeTier1:
		return 1
	case ReportTypeTier1Tier2:
		return 2
	default:
		return 0
	}
}

// Rating is the overall inspection outcome.
type Rating string

const (
	RatingPending          Rating = "pending"
	RatingExceeds          Rating = "exceeds"
	RatingMeets            Rating = "meets"
	RatingNeedsImprovement Rating = "needs_improvement"
	RatingUnsatisfactory   Rating = "unsatisfactory"
)

var ratingLabels = map[Rating]string{
	RatingPending:          "Pending",
	RatingExceeds:          "Exceeds",
	RatingMeets:            "Meets",
	RatingNeedsImprovement: "Needs Improvement",
	RatingUnsatisfactory:   "Unsatisfactory",
}

func (r Rating) Valid() bool {
	_, ok := ratingLabels[r]
	return ok
}

func (r Rating) Label() string {
	return ratingLabels[r]
}

// ReportStatus is the lifecycle state.
type ReportStatus string

const (
	StatusDraft     ReportStatus = "draft"
	StatusSubmitted ReportStatus = "submitted"
	StatusApproved  ReportStatus = "approved"
)

var statusLabels = map[ReportStatus]string{
	StatusDraft:     "Draft",
	StatusSubmitted: "Submitted",
	StatusApproved:  "Approved",
}

func (s ReportStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s ReportStatus) Label() string {
	return statusLabels[s]
}

var allowedTransitions = map[ReportStatus][]ReportStatus{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusDraft},
	StatusApproved:  {StatusSubmitted},
}

// CanTransition reports whether moving from s to next is a legal step. Staying put is always legal.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// DateLayout is the wire and storage format of inspection dates.
const DateLayout = "2006-01-02"

// Report is one inspection of a school.
type Report struct {
	ID               int64        `db:"id" json:"id"`
	SchoolID         int64        `db:"school_id" json:"school_id"`
	AuthorID         string       `db:"author_id" json:"author_id"`
	ReportType       ReportType   `db:"report_type" json:"report_type"`
	InspectionDate   string       `db:"inspection_date" json:"inspection_date"`
	PreviousReportID *int64       `db:"previous_report_id" json:"previous_report_id,omitempty"`
	OverallRating    Rating       `db:"overall_rating" json:"overall_rating"`
	Status           ReportStatus `db:"status" json:"status"`
	ClosingNotes     string       `db:"closing_notes" json:"closing_notes"`
	VersionID        int64        `db:"version_id" json:"version_id"`
	UpdatedBy        *string      `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`

	SchoolName string `db:"school_name" json:"school_name"`
	AuthorName string `db:"author_name" json:"author_name"`
}

// ReportFilter captures list criteria for reports.
type ReportFilter struct {
	SchoolID   int64
	AuthorID   string
	ReportType string
	Status     string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
