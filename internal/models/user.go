package models

import "strings"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleSupervisor   UserRole = "SUPERVISOR"
	RoleCollaborator UserRole = "COLLABORATOR"
	RoleDriver       UserRole = "DRIVER"
)

// ElevatedRoles may act on any delivery record.
var ElevatedRoles = []UserRole{RoleAdmin, RoleSupervisor, RoleCollaborator}

// Identity is the acting user as seen by the core services.
type Identity struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// NormalizedEmail is the comparison form of the identity email.
func (i Identity) NormalizedEmail() string {
	return NormalizeEmail(i.Email)
}

// NormalizeEmail lowercases and trims an email address for comparisons and keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
