package domain

import "time"

// Role is the authority level carried by an authenticated principal.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
	RoleOwner  Role = "OWNER"
)

// Elevated reports whether the role carries administrative authority.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleOwner
}

// Principal is the resolved caller identity the engine trusts.
type Principal struct {
	ID   string
	Role Role
}

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
