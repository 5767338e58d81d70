// Package varcache implements the variation caches backing the permissions
// chain: a process-local transient tier and a Redis durable tier. Both vary
// the stored key by context tokens whose values are resolved lazily, at
// lookup time, so that tokens like the active account are evaluated against
// whatever is ambient when the cache is consulted.
package varcache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gatehouse-labs/gatehouse/internal/identity"
	"github.com/gatehouse-labs/gatehouse/internal/permissions"
)

// Resolver resolves a context token to its current value.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Registry is a Resolver backed by registered per-token functions.
type Registry struct {
	funcs map[string]func(context.Context) (string, error)
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]func(context.Context) (string, error))}
}

// Register binds a token to its resolution function, replacing any previous
// binding.
func (r *Registry) Register(token string, fn func(context.Context) (string, error)) {
	r.funcs[token] = fn
}

// Resolve evaluates a registered token. Unknown tokens are an error: a
// calculator declaring a token nobody resolves is a wiring defect.
func (r *Registry) Resolve(ctx context.Context, token string) (string, error) {
	fn, ok := r.funcs[token]
	if !ok {
		return "", fmt.Errorf("varcache: unknown cache context %q", token)
	}
	return fn(ctx)
}

// RegisterAccountContext binds the active-account token. The request context
// takes precedence (the auth middleware stores the authenticated account
// there), so lookups and writes within one request resolve identically; the
// ambient switcher is the fallback for non-request paths such as warmup jobs,
// where writes happen under the switched-to target account.
func (r *Registry) RegisterAccountContext(switcher *identity.Switcher) {
	r.Register(permissions.CacheContextUser, func(ctx context.Context) (string, error) {
		if account, ok := identity.AccountFromContext(ctx); ok {
			return strconv.FormatInt(account.ID, 10), nil
		}
		return strconv.FormatInt(switcher.Current().ID, 10), nil
	})
}

// buildKey folds the base key and resolved context tokens into the effective
// cache key. Tokens are deduplicated and sorted first, so the chain handing
// over a token list with repeats produces the same key as a clean one.
func buildKey(ctx context.Context, resolver Resolver, baseKey string, tokens []string) (string, error) {
	if len(tokens) == 0 {
		return baseKey, nil
	}
	uniq := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		uniq = append(uniq, token)
	}
	sort.Strings(uniq)

	var b strings.Builder
	b.WriteString(baseKey)
	for _, token := range uniq {
		value, err := resolver.Resolve(ctx, token)
		if err != nil {
			return "", err
		}
		b.WriteString("|")
		b.WriteString(token)
		b.WriteString("=")
		b.WriteString(value)
	}
	return b.String(), nil
}
