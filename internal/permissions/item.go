package permissions

import "sort"

// Item is the immutable set of permissions granted for one scope instance,
// e.g. the permissions one role contributes within a workspace scope.
type Item struct {
	scope       string
	identifier  int64
	permissions []string
	isAdmin     bool
}

// NewItem constructs an Item. Permission names are deduplicated and stored
// sorted so that structural comparison is order-insensitive.
func NewItem(scope string, identifier int64, permissions []string, isAdmin bool) Item {
	return Item{
		scope:       scope,
		identifier:  identifier,
		permissions: normalizePermissions(permissions),
		isAdmin:     isAdmin,
	}
}

// Scope returns the scope type the item belongs to.
func (i Item) Scope() string { return i.scope }

// Identifier distinguishes multiple items within the same scope type.
func (i Item) Identifier() int64 { return i.identifier }

// Permissions returns the granted permission names, sorted.
func (i Item) Permissions() []string {
	out := make([]string, len(i.permissions))
	copy(out, i.permissions)
	return out
}

// IsAdmin reports whether the holder bypasses explicit permission checks
// within the item's scope.
func (i Item) IsAdmin() bool { return i.isAdmin }

// HasPermission reports whether the item grants the named permission,
// either explicitly or through the admin flag.
func (i Item) HasPermission(name string) bool {
	if i.isAdmin {
		return true
	}
	idx := sort.SearchStrings(i.permissions, name)
	return idx < len(i.permissions) && i.permissions[idx] == name
}

// merge combines two items for the same (scope, identifier) key:
// permission names union, admin flags OR.
func (i Item) merge(other Item) Item {
	combined := make([]string, 0, len(i.permissions)+len(other.permissions))
	combined = append(combined, i.permissions...)
	combined = append(combined, other.permissions...)
	return Item{
		scope:       i.scope,
		identifier:  i.identifier,
		permissions: normalizePermissions(combined),
		isAdmin:     i.isAdmin || other.isAdmin,
	}
}

// Equal reports structural equality.
func (i Item) Equal(other Item) bool {
	if i.scope != other.scope || i.identifier != other.identifier || i.isAdmin != other.isAdmin {
		return false
	}
	if len(i.permissions) != len(other.permissions) {
		return false
	}
	for idx, name := range i.permissions {
		if other.permissions[idx] != name {
			return false
		}
	}
	return true
}

type itemKey struct {
	scope      string
	identifier int64
}

func (i Item) key() itemKey {
	return itemKey{scope: i.scope, identifier: i.identifier}
}

func normalizePermissions(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
