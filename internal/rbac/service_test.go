package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

type stubStore struct {
	mockGrantSource
	roles   []Role
	created Role
	err     error

	setCalls    int
	assignCalls int
	removeCalls int
}

func (s *stubStore) ListRoles(ctx context.Context) ([]Role, error) { return s.roles, s.err }

func (s *stubStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	s.created = Role{ID: 1, Name: name, Description: description}
	return s.created, s.err
}

func (s *stubStore) SetRolePermissions(ctx context.Context, roleID int64, scope string, perms []string) error {
	s.setCalls++
	return s.err
}

func (s *stubStore) AssignRole(ctx context.Context, accountID, roleID int64) error {
	s.assignCalls++
	return s.err
}

func (s *stubStore) RemoveRole(ctx context.Context, accountID, roleID int64) error {
	s.removeCalls++
	return s.err
}

type stubQueue struct {
	tags [][]string
	err  error
}

func (q *stubQueue) EnqueueInvalidate(ctx context.Context, tags ...string) error {
	q.tags = append(q.tags, tags)
	return q.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store, queue InvalidationQueue) *Service {
	return NewService(store, queue, testLogger())
}

func TestServiceCreateRoleTrimsAndValidates(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, &stubQueue{})

	_, err := svc.CreateRole(context.Background(), "   ", "x")
	assert.Error(t, err)

	role, err := svc.CreateRole(context.Background(), "  editor ", " can edit ")
	require.NoError(t, err)
	assert.Equal(t, "editor", role.Name)
	assert.Equal(t, "can edit", role.Description)
}

func TestServiceMutationsInvalidateCaches(t *testing.T) {
	store := &stubStore{}
	queue := &stubQueue{}
	svc := newTestService(store, queue)
	ctx := context.Background()

	require.NoError(t, svc.SetRolePermissions(ctx, 1, "space", []string{"view"}))
	require.NoError(t, svc.AssignRole(ctx, 7, 1))
	require.NoError(t, svc.RemoveRole(ctx, 7, 1))

	require.Len(t, queue.tags, 3)
	for _, tags := range queue.tags {
		assert.Equal(t, []string{permissions.CacheTag, CacheTagRoles}, tags)
	}
}

func TestServiceSetRolePermissionsRequiresScope(t *testing.T) {
	store := &stubStore{}
	queue := &stubQueue{}
	svc := newTestService(store, queue)

	err := svc.SetRolePermissions(context.Background(), 1, "  ", []string{"view"})
	assert.Error(t, err)
	assert.Zero(t, store.setCalls)
	assert.Empty(t, queue.tags)
}

func TestServiceStoreErrorSkipsInvalidation(t *testing.T) {
	store := &stubStore{err: errors.New("pg down")}
	queue := &stubQueue{}
	svc := newTestService(store, queue)

	assert.Error(t, svc.AssignRole(context.Background(), 7, 1))
	assert.Empty(t, queue.tags)
}

func TestServiceSurfacesEnqueueFailure(t *testing.T) {
	store := &stubStore{}
	queue := &stubQueue{err: errors.New("redis down")}
	svc := newTestService(store, queue)

	assert.Error(t, svc.RemoveRole(context.Background(), 7, 1))
	assert.Equal(t, 1, store.removeCalls, "the mutation itself still happened")
}
