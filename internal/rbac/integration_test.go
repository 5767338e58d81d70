package rbac_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
	"github.com/gatehouse-labs/gatehouse/internal/rbac"
	"github.com/gatehouse-labs/gatehouse/internal/varcache"
	_ "github.com/gatehouse-labs/gatehouse/testing"
)

type grantFixture struct {
	grants map[int64]map[string][]rbac.Grant
	calls  int
}

func (f *grantFixture) Grants(ctx context.Context, accountID int64, scope string) ([]rbac.Grant, error) {
	f.calls++
	return f.grants[accountID][scope], nil
}

type permissionStack struct {
	chain    *permissions.Chain
	switcher *identity.Switcher
	memory   *varcache.Memory
	redis    *varcache.Redis
	grants   *grantFixture
}

// newPermissionStack wires the chain the way cmd/gatehouse does: a process
// local transient tier, a redis durable tier, an identity switcher and the
// two role-based calculators.
func newPermissionStack(t *testing.T) *permissionStack {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	switcher := identity.NewSwitcher(identity.Anonymous)
	registry := varcache.NewRegistry()
	registry.RegisterAccountContext(switcher)

	grants := &grantFixture{grants: map[int64]map[string][]rbac.Grant{
		7: {"space": {{RoleID: 2, Permissions: []string{"view", "edit"}}}},
		8: {"space": {{RoleID: 3, Permissions: []string{"view"}}}},
	}}

	memory := varcache.NewMemory(registry)
	durable := varcache.NewRedis(client, registry)
	chain := permissions.NewChain(permissions.ChainConfig{
		Transient: memory,
		Durable:   durable,
		Switcher:  switcher,
	})
	chain.AddCalculator(rbac.NewRoleCalculator(grants))
	chain.AddCalculator(rbac.NewSuperuserCalculator(switcher))

	return &permissionStack{chain: chain, switcher: switcher, memory: memory, redis: durable, grants: grants}
}

// requestContext mimics the HTTP path: the auth middleware stores the
// authenticated account in the request context, which is what the user
// cache context resolves against.
func requestContext(account identity.Account) context.Context {
	return identity.ContextWithAccount(context.Background(), account)
}

func TestChainWithRoleAndSuperuserCalculators(t *testing.T) {
	stack := newPermissionStack(t)

	editor := identity.Account{ID: 7, Email: "editor@example.com"}
	result, err := stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)

	assert.True(t, result.HasPermission("edit"))
	assert.False(t, result.HasPermission("delete"))
	assert.ElementsMatch(t, []string{permissions.CacheTag, rbac.CacheTagRoles}, result.CacheTags())
	assert.Contains(t, result.CacheContexts(), permissions.CacheContextUser)

	// The miss computation ran under the target account and restored the
	// previous one afterwards.
	assert.True(t, stack.switcher.Current().IsAnonymous())
}

func TestChainSuperuserBypassesGrants(t *testing.T) {
	stack := newPermissionStack(t)

	root := identity.Account{ID: 1, Email: "root@example.com", SuperUser: true}
	result, err := stack.chain.CalculatePermissions(requestContext(root), root, "space")
	require.NoError(t, err)
	assert.True(t, result.HasPermission("anything at all"))
}

func TestChainCachesVaryByAccount(t *testing.T) {
	stack := newPermissionStack(t)

	editor := identity.Account{ID: 7}
	viewer := identity.Account{ID: 8}

	first, err := stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)
	second, err := stack.chain.CalculatePermissions(requestContext(viewer), viewer, "space")
	require.NoError(t, err)

	assert.True(t, first.HasPermission("edit"))
	assert.False(t, second.HasPermission("edit"))
	assert.Equal(t, 2, stack.grants.calls, "each account computed once")

	// Repeat lookups are served from the transient tier.
	_, err = stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)
	assert.Equal(t, 2, stack.grants.calls)
}

func TestChainDurableTierSurvivesTransientFlush(t *testing.T) {
	stack := newPermissionStack(t)
	editor := identity.Account{ID: 7}

	_, err := stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)

	stack.memory.Flush()

	_, err = stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)
	assert.Equal(t, 1, stack.grants.calls, "durable tier served the second lookup")
}

func TestChainTagInvalidationForcesRecalculation(t *testing.T) {
	stack := newPermissionStack(t)
	editor := identity.Account{ID: 7}
	ctx := requestContext(editor)

	_, err := stack.chain.CalculatePermissions(ctx, editor, "space")
	require.NoError(t, err)

	// A role mutation invalidates both tiers by tag, the way the
	// invalidation job does.
	require.NoError(t, stack.redis.InvalidateTags(ctx, rbac.CacheTagRoles))
	require.NoError(t, stack.memory.InvalidateTags(ctx, rbac.CacheTagRoles))

	stack.grants.grants[7]["space"] = []rbac.Grant{{RoleID: 2, Permissions: []string{"view"}}}

	result, err := stack.chain.CalculatePermissions(ctx, editor, "space")
	require.NoError(t, err)
	assert.False(t, result.HasPermission("edit"))
	assert.Equal(t, 2, stack.grants.calls)
}

// Warmup jobs run without a request account; the user token then resolves
// against the ambient switcher, so entries written under the switched-to
// target are found by later request-path lookups for that account.
func TestChainWarmupWritesServeRequestLookups(t *testing.T) {
	stack := newPermissionStack(t)
	editor := identity.Account{ID: 7}

	_, err := stack.chain.CalculatePermissions(context.Background(), editor, "space")
	require.NoError(t, err)
	require.Equal(t, 1, stack.grants.calls)

	// Simulate a fresh web process: only the durable tier survives.
	stack.memory.Flush()

	_, err = stack.chain.CalculatePermissions(requestContext(editor), editor, "space")
	require.NoError(t, err)
	assert.Equal(t, 1, stack.grants.calls, "request lookup must hit the warmed durable entry")
}
