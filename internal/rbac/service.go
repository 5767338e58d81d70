package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

// Store is the persistence surface the service depends on.
type Store interface {
	GrantSource
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	SetRolePermissions(ctx context.Context, roleID int64, scope string, perms []string) error
	AssignRole(ctx context.Context, accountID, roleID int64) error
	RemoveRole(ctx context.Context, accountID, roleID int64) error
}

// InvalidationQueue schedules asynchronous invalidation of cached
// permission calculations.
type InvalidationQueue interface {
	EnqueueInvalidate(ctx context.Context, tags ...string) error
}

// Service orchestrates role administration. Every mutation schedules an
// invalidation of the cached calculations that depend on role grants.
type Service struct {
	store  Store
	queue  InvalidationQueue
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, queue InvalidationQueue, logger *slog.Logger) *Service {
	return &Service{store: store, queue: queue, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// SetRolePermissions replaces the role's grants within one scope.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, scope string, perms []string) error {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return errors.New("rbac: scope required")
	}
	if err := s.store.SetRolePermissions(ctx, roleID, scope, perms); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// AssignRole assigns a role to the given account.
func (s *Service) AssignRole(ctx context.Context, accountID, roleID int64) error {
	if err := s.store.AssignRole(ctx, accountID, roleID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// RemoveRole removes a role from an account.
func (s *Service) RemoveRole(ctx context.Context, accountID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, accountID, roleID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	if err := s.queue.EnqueueInvalidate(ctx, permissions.CacheTag, CacheTagRoles); err != nil {
		if s.logger != nil {
			s.logger.Error("enqueue invalidation", slog.Any("error", err))
		}
		return err
	}
	return nil
}
