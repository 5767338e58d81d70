package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

type mockGrantSource struct {
	grants map[string][]Grant
	err    error
	calls  int
}

func (m *mockGrantSource) Grants(ctx context.Context, accountID int64, scope string) ([]Grant, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.grants[scope], nil
}

func TestRoleCalculatorEmitsOneItemPerRole(t *testing.T) {
	source := &mockGrantSource{grants: map[string][]Grant{
		"space": {
			{RoleID: 1, Permissions: []string{"view", "edit"}},
			{RoleID: 2, Permissions: []string{"view"}},
		},
	}}
	calc := NewRoleCalculator(source)

	result, err := calc.CalculatePermissions(context.Background(), identity.Account{ID: 7}, "space")
	require.NoError(t, err)

	frozen := result.Freeze()
	require.Len(t, frozen.Items(), 2)

	editor, ok := frozen.Item("space", 1)
	require.True(t, ok)
	assert.Equal(t, []string{"edit", "view"}, editor.Permissions())
	assert.False(t, editor.IsAdmin())

	assert.Equal(t, []string{CacheTagRoles}, frozen.CacheTags())
	assert.Empty(t, calc.PersistentCacheContexts("space"), "role grants are a pure function of account and scope")
}

func TestRoleCalculatorEmptyWithoutGrants(t *testing.T) {
	calc := NewRoleCalculator(&mockGrantSource{})
	result, err := calc.CalculatePermissions(context.Background(), identity.Account{ID: 7}, "space")
	require.NoError(t, err)
	assert.Empty(t, result.Items())
}

func TestRoleCalculatorPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("pg down")
	calc := NewRoleCalculator(&mockGrantSource{err: boom})
	_, err := calc.CalculatePermissions(context.Background(), identity.Account{ID: 7}, "space")
	assert.ErrorIs(t, err, boom)
}

func TestSuperuserCalculatorReadsAmbientAccount(t *testing.T) {
	switcher := identity.NewSwitcher(identity.Anonymous)
	calc := NewSuperuserCalculator(switcher)

	assert.Equal(t, []string{permissions.CacheContextUser}, calc.PersistentCacheContexts("space"))

	// The parameter account is a superuser, but the ambient account is not.
	root := identity.Account{ID: 1, SuperUser: true}
	result, err := calc.CalculatePermissions(context.Background(), root, "space")
	require.NoError(t, err)
	assert.Empty(t, result.Items(), "the ambient account decides, not the parameter")

	switcher.SwitchTo(root)
	result, err = calc.CalculatePermissions(context.Background(), root, "space")
	require.NoError(t, err)

	frozen := result.Freeze()
	item, ok := frozen.Item("space", 0)
	require.True(t, ok)
	assert.True(t, item.IsAdmin())
	assert.Equal(t, []string{permissions.CacheContextUser}, frozen.CacheContexts())
}
