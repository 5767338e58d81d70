package permissions

import (
	"context"
	"fmt"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
)

const (
	// CacheTag is the fixed invalidation tag carried by every result the
	// chain produces; invalidating it drops all cached calculations.
	CacheTag = "permissions"

	// CacheContextUser declares that a calculator's output depends on the
	// ambient active account, not just the account parameter. The chain
	// switches identities around miss computations when it is present.
	CacheContextUser = "user"
)

// Cache tier names, as reported to Stats.
const (
	TierTransient = "transient"
	TierDurable   = "durable"
)

// VariationCache stores calculated permissions under a base key varied by
// context tokens. Token-to-value resolution happens inside the cache (it may
// consult the ambient active account), not in the chain.
type VariationCache interface {
	// Get returns the stored value for the key, reporting a miss with false.
	Get(ctx context.Context, baseKey string, contexts []string) (*CalculatedPermissions, bool, error)

	// Set stores the value under the key. Expiry and invalidation metadata
	// come from the value itself (max-age, cache tags).
	Set(ctx context.Context, baseKey string, value *CalculatedPermissions, contexts []string) error
}

// BaseKey builds the cache key for an account/scope pair, before variation
// by context tokens.
func BaseKey(account identity.Account, scope string) string {
	return fmt.Sprintf("permissions:%d:%s", account.ID, scope)
}
