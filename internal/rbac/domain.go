package rbac

import "time"

// Role groups permission grants that can be assigned to accounts.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grant is one role's permission names within a single scope.
type Grant struct {
	RoleID      int64
	Permissions []string
}

// CacheTagRoles marks cached results derived from role grants; role or
// assignment changes invalidate it.
const CacheTagRoles = "rbac:roles"
