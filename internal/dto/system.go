package dto

import "github.com/noah-isme/qa-reports-api/internal/models"

// MeResponse describes the caller. Clients branch on capabilities, never on the role label.
type MeResponse struct {
	ID           string                     `json:"id"`
	Email        string                     `json:"email"`
	FullName     string                     `json:"full_name"`
	Role         models.UserRole            `json:"role"`
	Capabilities map[models.Capability]bool `json:"capabilities"`
}

// ComponentStatus is the health of one dependency.
type ComponentStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// SystemCheck aggregates dependency health.
type SystemCheck struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}
