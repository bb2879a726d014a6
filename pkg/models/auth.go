package models

import (
	"strings"
	"time"
)

// Permission is the ordered access level an actor holds on a zone.
// Higher values grant strictly more than lower ones.
type Permission int

const (
	NoPermission Permission = -999
	ReadOnly     Permission = 0
	ReadWrite    Permission = 10
	AssignRoles  Permission = 20
	Owner        Permission = 999
	// Admin is a global role, never a per-zone grant. It bypasses
	// every zone-scoped check.
	Admin Permission = 10000
)

// RoleAdmin is the global role name that maps to the Admin permission.
const RoleAdmin = "admin"

// String returns the lowercase role name used in user records and the API.
func (p Permission) String() string {
	switch p {
	case NoPermission:
		return "nopermission"
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	case AssignRoles:
		return "assignroles"
	case Owner:
		return "owner"
	case Admin:
		return "admin"
	}
	return "unknown"
}

// ParsePermission maps a role name to its Permission level, ignoring
// case. Unknown names map to NoPermission.
func ParsePermission(name string) Permission {
	switch strings.ToLower(name) {
	case "readonly":
		return ReadOnly
	case "readwrite":
		return ReadWrite
	case "assignroles":
		return AssignRoles
	case "owner":
		return Owner
	case "admin":
		return Admin
	}
	return NoPermission
}

// AuthzEntry is one actor's explicit permission grant on a zone.
type AuthzEntry struct {
	Alias string     `json:"alias"`
	Level Permission `json:"authzlevel"`
}

// User is a locally managed account.
type User struct {
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	FullName     string    `json:"full_name,omitempty"`
	Roles        []string  `json:"roles"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Actor is a resolved identity derived from a validated session.
// It is never persisted as part of a request.
type Actor struct {
	Username string   `json:"preferred_username"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

// IsAdmin reports whether the actor holds the global admin role.
func (a *Actor) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// Session is an issued opaque bearer credential. The plaintext token is
// shown once at login; only its SHA-256 hash is stored.
type Session struct {
	TokenHash string
	Username  string
	Email     string
	FullName  string
	ExpiresAt time.Time
}

// IsExpired reports whether the session has passed its expiry time.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}
