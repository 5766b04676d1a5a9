// Package types carries the access domain model: users, grants, the
// grant state machine, reviews, and the read-model rows served by the
// tool surface.
package types

import "strings"

// Role is the canonical access role stored on a grant.
type Role string

const (
	RoleReadOnly       Role = "Read-Only"
	RoleReadWrite      Role = "Read-Write"
	RoleReadWriteOrder Role = "Read-Write-Order"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReadOnly, RoleReadWrite, RoleReadWriteOrder:
		return true
	}
	return false
}

// accessLevelRoles is the fixed mapping from roster "Access Level"
// text to canonical roles. Lookup is whitespace-normalized and
// case-insensitive; anything outside the table is an unknown role.
var accessLevelRoles = map[string]Role{
	"read + write + order": RoleReadWriteOrder,
	"read + write":         RoleReadWrite,
	"read only":            RoleReadOnly,
	"read-write-order":     RoleReadWriteOrder,
	"read-write":           RoleReadWrite,
	"read-only":            RoleReadOnly,
}

func RoleFromAccessLevel(text string) (Role, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(text), " "))
	role, ok := accessLevelRoles[key]
	return role, ok
}
