package model

import (
	"strings"
	"time"
)

// Role is the closed set of roles a user can hold. Anything that is not
// RoleUser or RoleAdmin is rejected by ParseRole, so an unknown string can
// never reach an authorization check.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// ParseRole accepts a role name case-insensitively. An empty string
// defaults to RoleUser.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "user":
		return RoleUser, true
	case "admin":
		return RoleAdmin, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

func (r Role) String() string { return string(r) }

// User represents a row of the `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – display form, trimmed, as chosen by the user.
//	PasswordHash – bcrypt hash; the plain password is never stored.
//	Role         – User or Admin.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// NormalizeUsername returns the key used for case-insensitive uniqueness.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the opaque token is stored.
//
// Every token issued from one login shares a FamilyID; a rotation points
// the consumed token at its successor through ReplacedBy.
type RefreshToken struct {
	ID         uint64     // refresh_tokens.id
	UserID     uint64     // refresh_tokens.user_id
	TokenHash  string     // refresh_tokens.token_hash
	FamilyID   string     // refresh_tokens.family_id
	ReplacedBy *uint64    // refresh_tokens.replaced_by (nullable)
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	CreatedAt  time.Time  // refresh_tokens.created_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
}

// Revoked reports whether the token has been revoked.
func (t RefreshToken) Revoked() bool { return t.RevokedAt != nil }

// Expired reports whether the token is past its expiry at now.
func (t RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Identity is the validated caller extracted from an access token.
type Identity struct {
	UserID   uint64
	Username string
	Role     Role
}

// IsAdmin reports whether the caller holds the Admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanAccess reports whether the caller may act on a record owned by ownerID.
func (i Identity) CanAccess(ownerID uint64) bool {
	return i.IsAdmin() || i.UserID == ownerID
}
