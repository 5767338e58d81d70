package varcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

func frozenResult(maxAge int, tags ...string) *permissions.CalculatedPermissions {
	r := permissions.NewRefinable()
	r.AddItem(permissions.NewItem("space", 1, []string{"view"}, false))
	r.AddCacheTags(tags...)
	r.RestrictMaxAge(maxAge)
	return r.Freeze()
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(NewRegistry())
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "permissions:1:space", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	value := frozenResult(permissions.MaxAgePermanent)
	require.NoError(t, m.Set(ctx, "permissions:1:space", value, nil))

	got, ok, err := m.Get(ctx, "permissions:1:space", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Equal(got))
}

func TestMemoryVariesByResolvedContext(t *testing.T) {
	switcher := identity.NewSwitcher(identity.Anonymous)
	registry := NewRegistry()
	registry.RegisterAccountContext(switcher)
	m := NewMemory(registry)
	ctx := context.Background()

	contexts := []string{permissions.CacheContextUser}
	switcher.SwitchTo(identity.Account{ID: 7})
	require.NoError(t, m.Set(ctx, "permissions:7:space", frozenResult(permissions.MaxAgePermanent), contexts))

	_, ok, err := m.Get(ctx, "permissions:7:space", contexts)
	require.NoError(t, err)
	assert.True(t, ok)

	// A different ambient account resolves to a different key.
	require.NoError(t, switcher.SwitchBack())
	_, ok, err = m.Get(ctx, "permissions:7:space", contexts)
	require.NoError(t, err)
	assert.False(t, ok, "key must vary on the ambient account")
}

func TestMemoryDuplicateTokensFoldIntoOneKey(t *testing.T) {
	switcher := identity.NewSwitcher(identity.Account{ID: 3})
	registry := NewRegistry()
	registry.RegisterAccountContext(switcher)
	m := NewMemory(registry)
	ctx := context.Background()

	duplicated := []string{"user", "user", "user"}
	require.NoError(t, m.Set(ctx, "base", frozenResult(permissions.MaxAgePermanent), duplicated))

	_, ok, err := m.Get(ctx, "base", []string{"user"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryUnknownContextErrors(t *testing.T) {
	m := NewMemory(NewRegistry())
	_, _, err := m.Get(context.Background(), "base", []string{"user"})
	assert.Error(t, err)
}

func TestMemoryHonoursMaxAge(t *testing.T) {
	m := NewMemory(NewRegistry())
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "base", frozenResult(60), nil))

	_, ok, err := m.Get(ctx, "base", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok, err = m.Get(ctx, "base", nil)
	require.NoError(t, err)
	assert.False(t, ok, "entries expire after their max-age")
	assert.Zero(t, m.Len(), "expired entries are dropped")
}

func TestMemoryExpiryKeepsRacingWrite(t *testing.T) {
	m := NewMemory(NewRegistry())
	ctx := context.Background()

	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "base", frozenResult(60), nil))
	now = now.Add(61 * time.Second)

	// The clock hook fires between Get's read and its expiry delete, which
	// is exactly where a concurrent Set can land. Replace the expired entry
	// there and make sure the delete does not take the fresh value with it.
	fresh := frozenResult(60)
	replaced := false
	m.now = func() time.Time {
		if !replaced {
			replaced = true
			require.NoError(t, m.Set(ctx, "base", fresh, nil))
		}
		return now
	}

	_, ok, err := m.Get(ctx, "base", nil)
	require.NoError(t, err)
	assert.False(t, ok, "the caller saw the expired entry")

	got, ok, err := m.Get(ctx, "base", nil)
	require.NoError(t, err)
	require.True(t, ok, "the racing write must survive the expiry delete")
	assert.True(t, fresh.Equal(got))
}

func TestMemoryInvalidateTags(t *testing.T) {
	m := NewMemory(NewRegistry())
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", frozenResult(permissions.MaxAgePermanent, "permissions"), nil))
	require.NoError(t, m.Set(ctx, "b", frozenResult(permissions.MaxAgePermanent, "permissions", "rbac:roles"), nil))
	require.NoError(t, m.Set(ctx, "c", frozenResult(permissions.MaxAgePermanent, "other"), nil))

	require.NoError(t, m.InvalidateTags(ctx, "permissions"))

	_, ok, _ := m.Get(ctx, "a", nil)
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "b", nil)
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "c", nil)
	assert.True(t, ok, "entries without the tag survive")
}
