package permissions

import (
	"encoding/json"
	"sort"
)

// CalculatedPermissions is the frozen result of one permissions calculation.
// Equality is structural; the durable cache relies on exact round-tripping
// through the JSON form below.
type CalculatedPermissions struct {
	items    map[itemKey]Item
	tags     []string
	contexts []string
	maxAge   int
}

// Item returns the item stored for (scope, identifier), if any.
func (c *CalculatedPermissions) Item(scope string, identifier int64) (Item, bool) {
	item, ok := c.items[itemKey{scope: scope, identifier: identifier}]
	return item, ok
}

// Items returns all items ordered by scope then identifier.
func (c *CalculatedPermissions) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].scope != out[j].scope {
			return out[i].scope < out[j].scope
		}
		return out[i].identifier < out[j].identifier
	})
	return out
}

// HasPermission reports whether any item grants the named permission,
// explicitly or through an admin flag.
func (c *CalculatedPermissions) HasPermission(name string) bool {
	for _, item := range c.items {
		if item.HasPermission(name) {
			return true
		}
	}
	return false
}

// CacheTags returns the accumulated cache tags, sorted.
func (c *CalculatedPermissions) CacheTags() []string {
	out := make([]string, len(c.tags))
	copy(out, c.tags)
	return out
}

// CacheContexts returns the accumulated context tokens, sorted.
func (c *CalculatedPermissions) CacheContexts() []string {
	out := make([]string, len(c.contexts))
	copy(out, c.contexts)
	return out
}

// MaxAge returns the result's max-age in seconds, MaxAgePermanent for none.
func (c *CalculatedPermissions) MaxAge() int { return c.maxAge }

// Equal reports structural equality: same items, tags, contexts and max-age.
func (c *CalculatedPermissions) Equal(other *CalculatedPermissions) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.maxAge != other.maxAge || len(c.items) != len(other.items) {
		return false
	}
	if !equalStrings(c.tags, other.tags) || !equalStrings(c.contexts, other.contexts) {
		return false
	}
	for key, item := range c.items {
		counterpart, ok := other.items[key]
		if !ok || !item.Equal(counterpart) {
			return false
		}
	}
	return true
}

type itemPayload struct {
	Scope       string   `json:"scope"`
	Identifier  int64    `json:"identifier"`
	Permissions []string `json:"permissions,omitempty"`
	IsAdmin     bool     `json:"is_admin,omitempty"`
}

type calculatedPayload struct {
	Items    []itemPayload `json:"items,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Contexts []string      `json:"contexts,omitempty"`
	MaxAge   int           `json:"max_age"`
}

// MarshalJSON encodes the result for durable cache storage.
func (c *CalculatedPermissions) MarshalJSON() ([]byte, error) {
	payload := calculatedPayload{
		Tags:     c.tags,
		Contexts: c.contexts,
		MaxAge:   c.maxAge,
	}
	for _, item := range c.Items() {
		payload.Items = append(payload.Items, itemPayload{
			Scope:       item.scope,
			Identifier:  item.identifier,
			Permissions: item.permissions,
			IsAdmin:     item.isAdmin,
		})
	}
	return json.Marshal(payload)
}

// UnmarshalJSON restores a result from its durable cache form.
func (c *CalculatedPermissions) UnmarshalJSON(data []byte) error {
	var payload calculatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	c.items = make(map[itemKey]Item, len(payload.Items))
	for _, entry := range payload.Items {
		item := NewItem(entry.Scope, entry.Identifier, entry.Permissions, entry.IsAdmin)
		c.items[item.key()] = item
	}
	c.tags = payload.Tags
	c.contexts = payload.Contexts
	c.maxAge = payload.MaxAge
	return nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for value := range set {
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
