package models

import (
	"encoding/json"
	"time"
)

// Audited actions.
const (
	AuditActionReportCreate   = "REPORT_CREATE"
	AuditActionReportUpdate   = "REPORT_UPDATE"
	AuditActionReportDelete   = "REPORT_DELETE"
	AuditActionSchoolCreate   = "SCHOOL_CREATE"
	AuditActionSchoolUpdate   = "SCHOOL_UPDATE"
	AuditActionSchoolDelete   = "SCHOOL_DELETE"
	AuditActionSettingsUpdate = "SETTINGS_UPDATE"
	AuditActionSummaryCreate  = "SUMMARY_GENERATE"
	AuditActionReportExport   = "REPORT_EXPORT"
)

// AuditLog is one row of the change trail. Before and After hold JSON
// snapshots of the resource; either may be empty.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Before     json.RawMessage `db:"old_values" json:"before,omitempty"`
	After      json.RawMessage `db:"new_values" json:"after,omitempty"`
	RequestID  string          `db:"request_id" json:"request_id,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter narrows the trail. Zero values match everything.
type AuditFilter struct {
	Resource   string
	ResourceID string
	UserID     string
	Action     string
	Limit      int
}
