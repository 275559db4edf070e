package domain

import "time"

// User is the record written by the bundled users import handler.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FullName     *string   `json:"full_name,omitempty"`
	Role         string    `json:"role"`
	Active       bool      `json:"is_active"`
	ImportTaskID string    `json:"import_task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultRole is assigned to imported users without a role.
const DefaultRole = "user"

// ValidRoles contains all valid user roles.
var ValidRoles = []string{"admin", "user", "moderator"}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
