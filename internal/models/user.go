package models

import "time"

// UserRole is the role label supplied by the identity provider.
type UserRole string

const (
	RoleSuperAdmin       UserRole = "SUPERADMIN"
	RoleAdmin            UserRole = "ADMIN"
	RoleRegionalDirector UserRole = "REGIONAL_DIRECTOR"
	RoleQAOfficer        UserRole = "QA_OFFICER"
	RoleProgramManager   UserRole = "PROGRAM_MANAGER"
)

// Valid reports whether the role is one the capability table knows.
func (r UserRole) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// User is the directory entry used to resolve display names.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the page count from the total.
func NewPagination(page, pageSize, total int) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}
