package entities

import (
	"time"

	"merkledrop/internal/shared/chain"
)

// Role is a vault capability. Owner covers administration and recovery,
// Admin covers withdrawal execution. Grants never expire on their own.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// RoleGrant records one principal-role relation for audit.
type RoleGrant struct {
	Principal chain.Address
	Role      Role
	GrantedBy chain.Address
	GrantedAt time.Time
}
