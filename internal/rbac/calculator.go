package rbac

import (
	"context"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

// GrantSource loads role grants for the role calculator.
type GrantSource interface {
	Grants(ctx context.Context, accountID int64, scope string) ([]Grant, error)
}

// RoleCalculator contributes one permissions item per role the account holds
// within the requested scope. Its output is a pure function of the account
// and scope, so it declares no cache contexts.
type RoleCalculator struct {
	permissions.NoopCalculator
	source GrantSource
}

// NewRoleCalculator constructs a RoleCalculator.
func NewRoleCalculator(source GrantSource) *RoleCalculator {
	return &RoleCalculator{source: source}
}

// Name identifies the calculator in scope-violation reports.
func (c *RoleCalculator) Name() string { return "rbac.roles" }

// CalculatePermissions loads the account's grants for the scope.
func (c *RoleCalculator) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*permissions.Refinable, error) {
	grants, err := c.source.Grants(ctx, account.ID, scope)
	if err != nil {
		return nil, err
	}
	result := permissions.NewRefinable()
	result.AddCacheTags(CacheTagRoles)
	for _, grant := range grants {
		result.AddItem(permissions.NewItem(scope, grant.RoleID, grant.Permissions, false))
	}
	return result, nil
}

// AmbientAccounts exposes the active account; satisfied by identity.Switcher.
type AmbientAccounts interface {
	Current() identity.Account
}

// SuperuserCalculator grants an admin item for any scope when the ambient
// active account is a superuser. Because it consults the ambient account
// rather than the account parameter, it declares the active-account cache
// context, which makes the chain switch identities on miss computations.
type SuperuserCalculator struct {
	permissions.NoopCalculator
	ambient AmbientAccounts
}

// NewSuperuserCalculator constructs a SuperuserCalculator.
func NewSuperuserCalculator(ambient AmbientAccounts) *SuperuserCalculator {
	return &SuperuserCalculator{ambient: ambient}
}

// Name identifies the calculator in scope-violation reports.
func (c *SuperuserCalculator) Name() string { return "rbac.superuser" }

// CalculatePermissions emits the admin item when the ambient account is a
// superuser, nothing otherwise.
func (c *SuperuserCalculator) CalculatePermissions(ctx context.Context, account identity.Account, scope string) (*permissions.Refinable, error) {
	result := permissions.NewRefinable()
	result.AddCacheContexts(permissions.CacheContextUser)
	if c.ambient.Current().SuperUser {
		result.AddItem(permissions.NewItem(scope, 0, nil, true))
	}
	return result, nil
}

// PersistentCacheContexts declares the active-account dependency up front.
func (c *SuperuserCalculator) PersistentCacheContexts(scope string) []string {
	return []string{permissions.CacheContextUser}
}
