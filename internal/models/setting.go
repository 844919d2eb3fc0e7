package models

import "time"

// SettingType defines supported types for setting values.
type SettingType string

const (
	SettingTypeString  SettingType = "STRING"
	SettingTypeBoolean SettingType = "BOOLEAN"
	SettingTypeSecret  SettingType = "SECRET"
)

// Setting keys understood by the service.
const (
	SettingGoogleClientID     = "google_client_id"
	SettingGoogleClientSecret = "google_client_secret"
	SettingGeminiAPIKey       = "gemini_api_key"
	SettingEnableAI           = "enable_ai"
	SettingCompanyName        = "company_name"
	SettingStorageRootFolder  = "storage_root_folder"
)

// Setting represents a persisted integration credential or feature toggle.
type Setting struct {
	Key       string      `db:"key" json:"key"`
	Value     string      `db:"value" json:"value"`
	Type      SettingType `db:"type" json:"type"`
	UpdatedBy *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
