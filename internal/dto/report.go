package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/qa-reports-api/internal/models"
)

// ChecklistEntry is one submitted checklist answer. Older clients send section/item/rating
// instead of section_key/item_key/value; both spellings are accepted.
type ChecklistEntry struct {
	SectionKey string `json:"section_key,omitempty"`
	Section    string `json:"section,omitempty"`
	ItemKey    string `json:"item_key,omitempty"`
	Item       string `json:"item,omitempty"`
	Value      string `json:"value,omitempty"`
	Rating     string `json:"rating,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Normalize resolves the accepted spellings into trimmed canonical fields.
func (e ChecklistEntry) Normalize() (section, item, value, notes string) {
	section = strings.TrimSpace(firstNonEmpty(e.SectionKey, e.Section))
	item = strings.TrimSpace(firstNonEmpty(e.ItemKey, e.Item))
	value = strings.TrimSpace(firstNonEmpty(e.Value, e.Rating))
	notes = strings.TrimSpace(e.Notes)
	return
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// BulkSaveRequest is the body of POST /reports/{id}/responses.
type BulkSaveRequest struct {
	Responses []ChecklistEntry `json:"responses"`
}

// BulkSaveResult reports how many entries were written and how many were dropped as malformed.
type BulkSaveResult struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// InlinePhoto is a data URI embedded in a JSON report payload.
type InlinePhoto struct {
	Data       string `json:"data"`
	SectionKey string `json:"section_key"`
	Caption    string `json:"caption"`
}

// PhotoEdit changes or removes an existing photo as part of a report update.
type PhotoEdit struct {
	ID         int64   `json:"id" validate:"required,gt=0"`
	Caption    *string `json:"caption"`
	SectionKey *string `json:"section_key"`
	Delete     bool    `json:"delete"`
}

// UpdatePhotoRequest is the body of PUT /photos/{id}.
type UpdatePhotoRequest struct {
	Caption    *string `json:"caption"`
	SectionKey *string `json:"section_key"`
}

// PlanItem is a client-edited remediation entry.
type PlanItem struct {
	Priority string `json:"priority"`
	Timeline string `json:"timeline"`
	Action   string `json:"action"`
}

// CreateReportRequest is the body of POST /reports.
type CreateReportRequest struct {
	SchoolID         int64            `json:"school_id" validate:"required,gt=0"`
	ReportType       string           `json:"report_type" validate:"required"`
	InspectionDate   string           `json:"inspection_date" validate:"required"`
	PreviousReportID *int64           `json:"previous_report_id"`
	OverallRating    string           `json:"overall_rating"`
	Status           string           `json:"status"`
	ClosingNotes     string           `json:"closing_notes" validate:"max=20000"`
	Responses        []ChecklistEntry `json:"responses"`
	Photos           []InlinePhoto    `json:"photos"`
}

// UpdateReportRequest carries a partial update; nil fields are left untouched.
type UpdateReportRequest struct {
	SchoolID         *int64           `json:"school_id" validate:"omitempty,gt=0"`
	ReportType       *string          `json:"report_type"`
	InspectionDate   *string          `json:"inspection_date"`
	PreviousReportID *int64           `json:"previous_report_id"`
	OverallRating    *string          `json:"overall_rating"`
	Status           *string          `json:"status"`
	ClosingNotes     *string          `json:"closing_notes" validate:"omitempty,max=20000"`
	VersionID        *int64           `json:"version_id"`
	Responses        []ChecklistEntry `json:"responses"`
	Photos           []InlinePhoto    `json:"photos"`
	PhotoEdits       []PhotoEdit      `json:"photo_updates" validate:"dive"`
	Plan             []PlanItem       `json:"plan_of_improvement"`
}

// PhotoResponse is a photo with its resolved URLs.
type PhotoResponse struct {
	ID           int64              `json:"id"`
	ReportID     int64              `json:"report_id"`
	SectionKey   string             `json:"section_key"`
	Section      string             `json:"section"`
	ItemKey      string             `json:"item_key,omitempty"`
	Filename     string             `json:"filename"`
	Caption      string             `json:"caption"`
	Tier         models.StorageTier `json:"storage_tier"`
	ViewURL      string             `json:"view_url"`
	ThumbnailURL string             `json:"thumbnail_url"`
	CreatedAt    time.Time          `json:"created_at"`
}

// UploadFailure identifies one file of a batch that could not be stored.
type UploadFailure struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadResult lists stored photos and the files that failed.
type UploadResult struct {
	Photos   []PhotoResponse `json:"photos"`
	Failures []UploadFailure `json:"failures"`
}

// ReportResponse is the list representation of a report.
type ReportResponse struct {
	ID                 int64               `json:"id"`
	SchoolID           int64               `json:"school_id"`
	SchoolName         string              `json:"school_name"`
	AuthorID           string              `json:"author_id"`
	AuthorName         string              `json:"author_name"`
	ReportType         models.ReportType   `json:"report_type"`
	ReportTypeLabel    string              `json:"report_type_label"`
	Tier               int                 `json:"tier"`
	InspectionDate     string              `json:"inspection_date"`
	PreviousReportID   *int64              `json:"previous_report_id,omitempty"`
	OverallRating      models.Rating       `json:"overall_rating"`
	OverallRatingLabel string              `json:"overall_rating_label"`
	Status             models.ReportStatus `json:"status"`
	StatusLabel        string              `json:"status_label"`
	VersionID          int64               `json:"version_id"`
	IsMine             bool                `json:"is_mine"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// NewReportResponse builds the list representation for a caller.
func NewReportResponse(report *models.Report, claims *models.JWTClaims) ReportResponse {
	return ReportResponse{
		ID:                 report.ID,
		SchoolID:           report.SchoolID,
		SchoolName:         report.SchoolName,
		AuthorID:           report.AuthorID,
		AuthorName:         report.AuthorName,
		ReportType:         report.ReportType,
		ReportTypeLabel:    report.ReportType.Label(),
		Tier:               report.ReportType.Tier(),
		InspectionDate:     report.InspectionDate,
		PreviousReportID:   report.PreviousReportID,
		OverallRating:      report.OverallRating,
		OverallRatingLabel: report.OverallRating.Label(),
		Status:             report.Status,
		StatusLabel:        report.Status.Label(),
		VersionID:          report.VersionID,
		IsMine:             claims.Owns(report.AuthorID),
		CreatedAt:          report.CreatedAt,
		UpdatedAt:          report.UpdatedAt,
	}
}

// ReportDetail is the full representation returned by read, create and update.
type ReportDetail struct {
	ReportResponse
	ClosingNotes string                   `json:"closing_notes"`
	School       *models.School           `json:"school,omitempty"`
	Responses    *models.GroupedChecklist `json:"responses"`
	Photos       []PhotoResponse          `json:"photos"`
	Summary      *models.AISummary        `json:"ai_summary,omitempty"`
	Uploads      *UploadResult            `json:"uploads,omitempty"`
}
