package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoleName identifies a role. Roles are seeded by migrations.
type RoleName string

const (
	RoleSuperadmin RoleName = "superadmin"
	RoleAdmin      RoleName = "admin"
	RoleUser       RoleName = "user"
)

// DefaultRole is assigned to every user at creation.
const DefaultRole = RoleUser

type Role struct {
	ID        uuid.UUID `json:"id"`
	Name      RoleName  `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRole is a row of the user/role association.
type UserRole struct {
	UserID    uuid.UUID `json:"user_id"`
	RoleID    uuid.UUID `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleNames extracts the names of roles.
func RoleNames(roles []Role) []RoleName {
	out := make([]RoleName, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return out
}
