package dto

import "time"

// SettingItem is a setting as exposed to administrators. Secrets are masked.
type SettingItem struct {
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Masked      bool       `json:"masked"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest is the body of POST /settings.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}
