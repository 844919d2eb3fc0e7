package dto

// ParsedDocument is the structured draft extracted from an uploaded inspection document.
type ParsedDocument struct {
	SchoolName     string           `json:"school_name"`
	SchoolID       *int64           `json:"school_id,omitempty"`
	InspectionDate string           `json:"inspection_date"`
	ReportType     string           `json:"report_type"`
	Responses      []ChecklistEntry `json:"responses"`
	ClosingNotes   string           `json:"closing_notes"`
	Source         string           `json:"source"`
}
