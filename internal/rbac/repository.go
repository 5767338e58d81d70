package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicate indicates a unique constraint conflict.
	ErrDuplicate = errors.New("rbac: duplicate")
)

const pgUniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for roles and grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Grants returns the account's role grants within the scope, one Grant per
// role carrying that role's permission names.
func (r *Repository) Grants(ctx context.Context, accountID int64, scope string) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ar.role_id, rp.permission
		FROM account_roles ar
		JOIN role_permissions rp ON rp.role_id = ar.role_id
		WHERE ar.account_id = $1 AND rp.scope = $2
		ORDER BY ar.role_id, rp.permission`,
		accountID, scope)
	if err != nil {
		return nil, fmt.Errorf("rbac: query grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var roleID int64
		var permission string
		if err := rows.Scan(&roleID, &permission); err != nil {
			return nil, fmt.Errorf("rbac: scan grant: %w", err)
		}
		if len(grants) == 0 || grants[len(grants)-1].RoleID != roleID {
			grants = append(grants, Grant{RoleID: roleID})
		}
		last := &grants[len(grants)-1]
		last.Permissions = append(last.Permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: iterate grants: %w", err)
	}
	return grants, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`,
		name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrDuplicate
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// SetRolePermissions replaces the role's permission names within one scope.
func (r *Repository) SetRolePermissions(ctx context.Context, roleID int64, scope string, perms []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("rbac: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return fmt.Errorf("rbac: check role: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND scope = $2`, roleID, scope); err != nil {
		return fmt.Errorf("rbac: clear grants: %w", err)
	}
	for _, perm := range perms {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, scope, permission)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			roleID, scope, perm); err != nil {
			return fmt.Errorf("rbac: insert grant: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// AssignRole assigns a role to the given account.
func (r *Repository) AssignRole(ctx context.Context, accountID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO account_roles (account_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		accountID, roleID)
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	return nil
}

// RemoveRole removes a role from an account.
func (r *Repository) RemoveRole(ctx context.Context, accountID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM account_roles WHERE account_id = $1 AND role_id = $2`,
		accountID, roleID)
	if err != nil {
		return fmt.Errorf("rbac: remove role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
