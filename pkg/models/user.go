package models

import "strings"

// Role gates which invoice endpoints a user may call.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "user"
)

// ParseRole maps the token role claim ("Admin" or "User") to a Role.
func ParseRole(s string) Role {
	switch {
	case strings.TrimSpace(s) == "":
		return ""
	case strings.EqualFold(s, string(RoleAdmin)):
		return RoleAdmin
	default:
		return RoleUser
	}
}

// User is an account on the invoice backend.
type User struct {
	ID          FlexString  `json:"id"`
	Name        string      `json:"name,omitempty"`
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	ProjectRole interface{} `json:"projectRole,omitempty"`
}

// Projects returns the projects a regular user is assigned to.
func (u *User) Projects() Projects {
	return NormalizeProjects(u.ProjectRole)
}
