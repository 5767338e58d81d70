package permissions

// MaxAgePermanent marks a result that never expires on its own.
const MaxAgePermanent = -1

// Refinable is the in-progress accumulation form of a calculated-permissions
// value. A fresh Refinable is created per calculation, refined by each
// calculator in turn, and frozen before being returned or cached.
type Refinable struct {
	items    map[itemKey]Item
	tags     map[string]struct{}
	contexts map[string]struct{}
	maxAge   int
}

// NewRefinable constructs an empty accumulator with no expiry constraint.
func NewRefinable() *Refinable {
	return &Refinable{
		items:    make(map[itemKey]Item),
		tags:     make(map[string]struct{}),
		contexts: make(map[string]struct{}),
		maxAge:   MaxAgePermanent,
	}
}

// AddItem records an item. An item already present under the same
// (scope, identifier) key is merged: permission names union, admin flags OR.
func (r *Refinable) AddItem(item Item) *Refinable {
	key := item.key()
	if existing, ok := r.items[key]; ok {
		item = existing.merge(item)
	}
	r.items[key] = item
	return r
}

// AddCacheTags accumulates cache tags by union.
func (r *Refinable) AddCacheTags(tags ...string) *Refinable {
	for _, tag := range tags {
		r.tags[tag] = struct{}{}
	}
	return r
}

// AddCacheContexts accumulates cache context tokens by union.
func (r *Refinable) AddCacheContexts(tokens ...string) *Refinable {
	for _, token := range tokens {
		r.contexts[token] = struct{}{}
	}
	return r
}

// RestrictMaxAge lowers the max-age to the given value. MaxAgePermanent
// imposes no constraint, so merging it leaves the other value in place.
func (r *Refinable) RestrictMaxAge(seconds int) *Refinable {
	r.maxAge = mergeMaxAge(r.maxAge, seconds)
	return r
}

// MaxAge returns the accumulated max-age in seconds.
func (r *Refinable) MaxAge() int { return r.maxAge }

// Items returns the accumulated items in unspecified order.
func (r *Refinable) Items() []Item {
	out := make([]Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out
}

// Merge folds other into a new accumulator, leaving both inputs unchanged.
func (r *Refinable) Merge(other *Refinable) *Refinable {
	merged := NewRefinable()
	merged.maxAge = r.maxAge
	for _, item := range r.items {
		merged.AddItem(item)
	}
	for tag := range r.tags {
		merged.AddCacheTags(tag)
	}
	for token := range r.contexts {
		merged.AddCacheContexts(token)
	}
	if other == nil {
		return merged
	}
	for _, item := range other.items {
		merged.AddItem(item)
	}
	for tag := range other.tags {
		merged.AddCacheTags(tag)
	}
	for token := range other.contexts {
		merged.AddCacheContexts(token)
	}
	merged.maxAge = mergeMaxAge(merged.maxAge, other.maxAge)
	return merged
}

// Freeze converts the accumulator into its immutable form.
func (r *Refinable) Freeze() *CalculatedPermissions {
	items := make(map[itemKey]Item, len(r.items))
	for key, item := range r.items {
		items[key] = item
	}
	return &CalculatedPermissions{
		items:    items,
		tags:     sortedSet(r.tags),
		contexts: sortedSet(r.contexts),
		maxAge:   r.maxAge,
	}
}

func mergeMaxAge(a, b int) int {
	if a == MaxAgePermanent {
		return b
	}
	if b == MaxAgePermanent {
		return a
	}
	if b < a {
		return b
	}
	return a
}
