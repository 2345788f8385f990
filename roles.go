package auth

import "strings"

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAdmin,
		RoleTeacher,
		RoleStudent,
	}
}

// ParseRole safely parses a string into a UserRole type. Matching is
// case insensitive; the canonical upper case form is returned.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleSet is a flat collection of roles used for route access checks.
// Membership is exact: no role implies another.
type RoleSet []UserRole

// NewRoleSet builds a RoleSet from the given roles, dropping invalid
// entries and duplicates.
func NewRoleSet(roles ...UserRole) RoleSet {
	set := make(RoleSet, 0, len(roles))
	for _, role := range roles {
		if !role.IsValid() || set.Contains(role) {
			continue
		}
		set = append(set, role)
	}
	return set
}

// Contains reports whether the given role is a member of the set
func (s RoleSet) Contains(role UserRole) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set has no members
func (s RoleSet) IsEmpty() bool {
	return len(s) == 0
}

// Strings returns the set's members as plain strings
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}
