package identity

import "strings"

// UserRole is the authorization scope of an identity
type UserRole string

const (
	// RoleUser is a regular account holder
	RoleUser UserRole = "user"
	// RoleAdmin can manage every identity
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// UserStatus drives login eligibility
type UserStatus string

const (
	UserStatusInactive  UserStatus = "inactive"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// IsValid checks if the status is one of the predefined statuses
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusInactive, UserStatusActive, UserStatusSuspended:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into a UserStatus type
func ParseStatus(statusStr string) (UserStatus, bool) {
	status := UserStatus(strings.ToLower(strings.TrimSpace(statusStr)))
	return status, status.IsValid()
}

// GetAllStatuses returns every known status
func GetAllStatuses() []UserStatus {
	return []UserStatus{
		UserStatusInactive,
		UserStatusActive,
		UserStatusSuspended,
	}
}
